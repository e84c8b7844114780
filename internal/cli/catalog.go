package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pactline/internal/catalog"
)

var (
	catalogFile      string
	catalogDimension string
	catalogOutput    string
	catalogForce     bool
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogInitCmd, catalogValidateCmd)
	catalogCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "Catalog YAML (default: catalog from config, else built-in)")
	catalogListCmd.Flags().StringVar(&catalogDimension, "dimension", "", "Only list keys of this dimension")
	catalogInitCmd.Flags().StringVarP(&catalogOutput, "output", "o", "", "Write to file instead of stdout")
	catalogInitCmd.Flags().BoolVar(&catalogForce, "force", false, "Overwrite an existing output file")
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the constraint catalog",
	Long:  "The catalog defines every constraint key, the modes it may be negotiated in\n(Locked, Negotiable, Injected) and the bounds of its value.",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List constraint keys",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show one constraint definition as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogShow,
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in catalog as editable YAML",
	Args:  cobra.NoArgs,
	RunE:  runCatalogInit,
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <catalog.yaml>",
	Short: "Check a catalog file for errors",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogValidate,
}

// loadCatalog resolves --catalog, then the config, then the built-in table.
func loadCatalog() (*catalog.Catalog, error) {
	path := catalogFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Catalog
	}
	return catalog.Load(path)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	w := stdout(cmd)
	fmt.Fprintf(w, "%-24s %-14s %-8s %-11s %s\n", "KEY", "DIMENSION", "KIND", "DEFAULT", "MODES")
	for _, d := range cat.Definitions() {
		if catalogDimension != "" && !strings.EqualFold(string(d.Dimension), catalogDimension) {
			continue
		}
		modes := make([]string, len(d.AllowedModes))
		for i, m := range d.AllowedModes {
			modes[i] = string(m)
		}
		fmt.Fprintf(w, "%-24s %-14s %-8s %-11s %s\n", d.Key, d.Dimension, d.Kind, d.DefaultMode, strings.Join(modes, ","))
	}
	return nil
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	def, err := cat.Lookup(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(cmd), string(out))
	return nil
}

func runCatalogInit(cmd *cobra.Command, args []string) error {
	content := catalog.DefaultYAML()
	if catalogOutput == "" {
		fmt.Fprint(stdout(cmd), content)
		return nil
	}
	if !catalogForce {
		if _, err := os.Stat(catalogOutput); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", catalogOutput)
		}
	}
	if err := os.WriteFile(catalogOutput, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", catalogOutput, err)
	}
	fmt.Fprintf(stdout(cmd), "Wrote %s\n", catalogOutput)
	return nil
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	cat, err := catalog.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(stdout(cmd), "OK: %d constraint keys (%s)\n", cat.Len(), catalog.HashBytes(data))
	return nil
}
