package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/config"
)

var (
	initMode  string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.pactline) or system (/etc/pactline)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap pactline configuration",
	Long: `Creates the config directory with config.yaml, an editable copy of the
built-in constraint catalog and an empty policies directory.

User mode (default):  writes to ~/.pactline/
System mode:          writes to /etc/pactline/ (requires root)`,
	RunE: runInit,
}

// seedFile is one file laid down by init.
type seedFile struct {
	path    string
	content string
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := initConfigDir()
	if err != nil {
		return err
	}
	policies := filepath.Join(dir, "policies")
	if err := os.MkdirAll(policies, 0o755); err != nil {
		return fmt.Errorf("create policies directory: %w", err)
	}

	catalogPath := filepath.Join(dir, "catalog.yaml")
	cfgFile := filepath.Join(dir, "config.yaml")
	cfgYAML := strings.NewReplacer(
		`catalog: ""`, fmt.Sprintf("catalog: %q", catalogPath),
		`policy_dir: ""`, fmt.Sprintf("policy_dir: %q", policies),
	).Replace(config.DefaultYAML())

	var created []string
	for _, f := range []seedFile{
		{catalogPath, catalog.DefaultYAML()},
		{cfgFile, cfgYAML},
	} {
		wrote, err := writeIfMissing(f.path, f.content)
		if err != nil {
			return err
		}
		if wrote {
			created = append(created, f.path)
		}
	}

	w := stdout(cmd)
	if len(created) == 0 {
		fmt.Fprintf(w, "%s already initialised (use --force to overwrite).\n", dir)
	} else {
		fmt.Fprintf(w, "Initialised %s:\n", dir)
		for _, p := range created {
			fmt.Fprintf(w, "  + %s\n", p)
		}
	}
	fmt.Fprintf(w, `
Next steps:
  pactline policy new "Sales data" -o draft.json
  pactline policy publish draft.json --into %s
  pactline serve --config %s
`, policies, cfgFile)
	return nil
}

// initConfigDir returns the configuration directory based on mode.
func initConfigDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/pactline", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".pactline"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing reports whether it wrote path. Existing files are left
// alone unless --force is set.
func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil && !initForce {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
