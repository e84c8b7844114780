package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/termdiff"
)

var diffFormat string

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
	diffCmd.Flags().StringVar(&catalogFile, "catalog", "", "Catalog YAML (default: catalog from config, else built-in)")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old-terms> <new-terms>",
	Short: "Compare two term sets and show changes",
	Long:  "Loads two terms files (YAML or JSON: actions and constraints) and shows what changed\nin the keys the catalog marks Negotiable, plus added and removed actions.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

// readTerms decodes a terms file. JSON is accepted as YAML.
func readTerms(path string) (model.Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Terms{}, fmt.Errorf("read terms: %w", err)
	}
	var t model.Terms
	if err := yaml.Unmarshal(data, &t); err != nil {
		return model.Terms{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	oldTerms, err := readTerms(args[0])
	if err != nil {
		return fmt.Errorf("load old terms: %w", err)
	}
	newTerms, err := readTerms(args[1])
	if err != nil {
		return fmt.Errorf("load new terms: %w", err)
	}

	result := termdiff.Compare(termdiff.CatalogModes(cat), oldTerms, newTerms)
	result.Base = args[0]
	result.Candidate = args[1]

	switch diffFormat {
	case "json":
		out, err := termdiff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout(cmd), out)
	case "text", "":
		fmt.Fprint(stdout(cmd), termdiff.FormatText(result))
	default:
		return fmt.Errorf("unknown format %q (want text or json)", diffFormat)
	}
	return nil
}
