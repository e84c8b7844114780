// pactline negotiates, signs and meters policy-governed data contracts.
package main

import "github.com/ppiankov/pactline/internal/cli"

func main() {
	cli.Execute()
}
