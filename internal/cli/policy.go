package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/odrl"
	"github.com/ppiankov/pactline/internal/validate"
)

var (
	policyOutput    string
	policyOperator  string
	policyValue     string
	policyMode      string
	policyMin       string
	policyMax       string
	policyComment   string
	policyTarget    string
	policyInto      string
	policyDirectory string
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyNewCmd, policyConstraintCmd, policyRemoveCmd, policyPublishCmd,
		policyReviseCmd, policyValidateCmd, policyResolveCmd)
	policyCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "Catalog YAML (default: catalog from config, else built-in)")

	policyNewCmd.Flags().StringVarP(&policyOutput, "output", "o", "", "Write to file instead of stdout")
	policyNewCmd.Flags().StringVar(&policyTarget, "target", "", "Asset target of the use permission (glob allowed)")
	policyReviseCmd.Flags().StringVarP(&policyOutput, "output", "o", "", "Write the new draft to file instead of stdout")

	f := policyConstraintCmd.Flags()
	f.StringVar(&policyOperator, "operator", "", "ODRL operator (eq, lte, isAnyOf, ...)")
	f.StringVar(&policyValue, "value", "", "Right operand; YAML scalar or [list]")
	f.StringVar(&policyMode, "mode", "", "Locked, Negotiable or Injected")
	f.StringVar(&policyMin, "min", "", "Lower negotiation bound")
	f.StringVar(&policyMax, "max", "", "Upper negotiation bound")
	f.StringVar(&policyComment, "comment", "", "Free-text note")

	policyPublishCmd.Flags().StringVar(&policyInto, "into", "", "Also copy the published policy into this directory as <uid>.json")
	policyResolveCmd.Flags().StringVar(&policyDirectory, "policy-dir", "", "Policy directory (default: policy_dir from config)")
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Author ODRL usage policies",
	Long:  "Policies are JSON documents. Drafts are edited in place; publishing freezes a\npolicy and later changes go into a revision with a new uid and version.",
}

var policyNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a draft policy",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyNew,
}

var policyConstraintCmd = &cobra.Command{
	Use:   "constraint <policy.json> <key>",
	Short: "Add or update a constraint in a draft",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicyConstraint,
}

var policyRemoveCmd = &cobra.Command{
	Use:   "remove <policy.json> <key>",
	Short: "Remove a constraint from a draft",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicyRemove,
}

var policyPublishCmd = &cobra.Command{
	Use:   "publish <policy.json>",
	Short: "Validate and freeze a draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyPublish,
}

var policyReviseCmd = &cobra.Command{
	Use:   "revise <policy.json>",
	Short: "Start a new draft from a published policy",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyRevise,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <policy.json>",
	Short: "Check a policy against the schema and the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyValidate,
}

var policyResolveCmd = &cobra.Command{
	Use:   "resolve <target>",
	Short: "Show the published policy that governs a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyResolve,
}

func readPolicy(path string) (odrl.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return odrl.Policy{}, fmt.Errorf("read policy: %w", err)
	}
	p, err := odrl.Parse(data)
	if err != nil {
		return odrl.Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func writePolicy(cmd *cobra.Command, path string, p odrl.Policy) error {
	data, err := odrl.Marshal(p)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(stdout(cmd), string(data))
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// parseValue reads a right operand the way catalog YAML does: numbers stay
// numeric, [a, b] is a list, everything else is text.
func parseValue(s string) (model.Value, error) {
	var v model.Value
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return v, model.Errorf(model.KindInvalidArgument, "invalid value %q: %v", s, err)
	}
	return v, nil
}

func parseBound(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, model.Errorf(model.KindInvalidArgument, "invalid bound %q", s)
	}
	return &f, nil
}

func constraintUpdate() (odrl.ConstraintUpdate, error) {
	var u odrl.ConstraintUpdate
	if policyOperator != "" {
		op, err := odrl.ParseOperator(policyOperator)
		if err != nil {
			return u, err
		}
		u.Operator = &op
	}
	if policyValue != "" {
		v, err := parseValue(policyValue)
		if err != nil {
			return u, err
		}
		u.Value = &v
	}
	if policyMode != "" {
		m, err := catalog.ParseMode(policyMode)
		if err != nil {
			return u, err
		}
		u.Mode = &m
	}
	lo, err := parseBound(policyMin)
	if err != nil {
		return u, err
	}
	hi, err := parseBound(policyMax)
	if err != nil {
		return u, err
	}
	if lo != nil || hi != nil {
		u.Range = &catalog.Bounds{Min: lo, Max: hi}
	}
	if policyComment != "" {
		c := policyComment
		u.Comment = &c
	}
	return u, nil
}

func runPolicyNew(cmd *cobra.Command, args []string) error {
	p := odrl.NewDraft(args[0], time.Now())
	if policyTarget != "" {
		p.Permission[0].Target = policyTarget
	}
	if err := writePolicy(cmd, policyOutput, p); err != nil {
		return err
	}
	if policyOutput != "" {
		fmt.Fprintf(stdout(cmd), "Created draft %s %s in %s\n", p.UID, p.Version, policyOutput)
	}
	return nil
}

func runPolicyConstraint(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	p, err := readPolicy(args[0])
	if err != nil {
		return err
	}
	u, err := constraintUpdate()
	if err != nil {
		return err
	}
	p, err = odrl.AddOrUpdateConstraint(cat, p, args[1], u)
	if err != nil {
		return err
	}
	if err := writePolicy(cmd, args[0], p); err != nil {
		return err
	}
	c, _ := p.Constraint(args[1])
	fmt.Fprintf(stdout(cmd), "%s: %s %s %s (%s)\n", args[0], c.LeftOperand, c.Operator, c.RightOperand.String(), c.Mode)
	return nil
}

func runPolicyRemove(cmd *cobra.Command, args []string) error {
	p, err := readPolicy(args[0])
	if err != nil {
		return err
	}
	p, err = odrl.RemoveConstraint(p, args[1])
	if err != nil {
		return err
	}
	if err := writePolicy(cmd, args[0], p); err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "%s: removed %s\n", args[0], args[1])
	return nil
}

func runPolicyPublish(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	p, err := readPolicy(args[0])
	if err != nil {
		return err
	}
	p, err = odrl.Publish(cat, p, time.Now())
	if err != nil {
		printFieldErrors(cmd, err)
		return err
	}
	if err := writePolicy(cmd, args[0], p); err != nil {
		return err
	}
	if policyInto != "" {
		if err := os.MkdirAll(policyInto, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", policyInto, err)
		}
		if err := writePolicy(cmd, filepath.Join(policyInto, p.UID+".json"), p); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout(cmd), "Published %s %s\n", p.UID, p.Version)
	return nil
}

func runPolicyRevise(cmd *cobra.Command, args []string) error {
	p, err := readPolicy(args[0])
	if err != nil {
		return err
	}
	next, err := odrl.Revise(p, time.Now())
	if err != nil {
		return err
	}
	if err := writePolicy(cmd, policyOutput, next); err != nil {
		return err
	}
	if policyOutput != "" {
		fmt.Fprintf(stdout(cmd), "Revised %s %s -> %s %s in %s\n", p.UID, p.Version, next.UID, next.Version, policyOutput)
	}
	return nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	p, err := readPolicy(args[0])
	if err != nil {
		return err
	}
	col := validate.NewCollector(cat)
	n := 0
	for _, perm := range p.Permission {
		for _, c := range perm.Constraint {
			n++
			if c.RightOperand.IsZero() {
				continue
			}
			col.Check(c.LeftOperand, c.Mode, c.RightOperand, c.NegotiationOptions)
		}
	}
	if err := col.Err(); err != nil {
		printFieldErrors(cmd, err)
		return err
	}
	state := "draft"
	if p.Published() {
		state = "published"
	}
	fmt.Fprintf(stdout(cmd), "OK: %s %s (%s), %d constraints\n", p.UID, p.Version, state, n)
	return nil
}

func runPolicyResolve(cmd *cobra.Command, args []string) error {
	dir := policyDirectory
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.PolicyDir
	}
	reg, err := odrl.LoadDir(dir)
	if err != nil {
		return err
	}
	p, err := reg.Resolve(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "%s %s %s (priority %d)\n", p.UID, p.Version, p.Name, p.Priority)
	return nil
}

// printFieldErrors lists every per-key failure of an aggregated error.
func printFieldErrors(cmd *cobra.Command, err error) {
	me, ok := model.AsError(err)
	if !ok || len(me.Fields) == 0 {
		return
	}
	w := stderr(cmd)
	for _, key := range me.Fields.Keys() {
		for _, fe := range me.Fields[key] {
			line := fmt.Sprintf("  %s: %s (%s)", key, fe.Reason, fe.Kind)
			if fe.Hint != "" {
				line += " hint: " + fe.Hint
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
}
