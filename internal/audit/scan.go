package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

const maxLine = 4 * 1024 * 1024

// scanLines calls fn for every line of the log at path, numbered from 1.
// The slice passed to fn is only valid for the duration of the call.
func scanLines(path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", n+1, err)
	}
	return nil
}

// tailHash returns the chain hash of the last line at path, or GenesisHash
// when the file is missing or empty.
func tailHash(path string) (string, error) {
	var last []byte
	err := scanLines(path, func(_ int, line []byte) error {
		last = append(last[:0], line...)
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", err
	}
	if len(last) == 0 {
		return GenesisHash, nil
	}
	return HashLine(last), nil
}
