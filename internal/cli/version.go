package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pactline/internal/catalog"
)

const version = "0.4.0"

// versionInfo is what `pactline version` prints.
type versionInfo struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Service        string `json:"service"`
	BuiltinCatalog string `json:"builtin_catalog"`
	ConstraintKeys int    `json:"constraint_keys"`
	Go             string `json:"go"`
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and built-in catalog information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := json.MarshalIndent(versionInfo{
			Name:           "pactline",
			Version:        version,
			Service:        "pactline.v1.Negotiation",
			BuiltinCatalog: catalog.HashBytes([]byte(catalog.DefaultYAML())),
			ConstraintKeys: len(catalog.Default().Definitions()),
			Go:             runtime.Version(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout(cmd), string(out))
		return nil
	},
}
