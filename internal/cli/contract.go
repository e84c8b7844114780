package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	pb "github.com/ppiankov/pactline/api/pactline/v1"
	"github.com/ppiankov/pactline/internal/client"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/inject"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/store"
	"github.com/ppiankov/pactline/internal/termdiff"
)

var (
	contractAddr      string
	contractFile      string
	contractJSON      bool
	contractParty     string
	contractDID       string
	contractBase      int
	contractComment   string
	contractReason    string
	contractStatus    string
	contractProduct   string
	contractFormat    string
	usageConnectorDID string
	usageSourceIP     string
	usageCert         string
	usageRole         string
)

func init() {
	rootCmd.AddCommand(contractCmd)
	contractCmd.AddCommand(contractCreateCmd, contractSubmitCmd, contractProposeCmd, contractSignCmd,
		contractShowCmd, contractListCmd, contractHistoryCmd, contractDiffCmd, contractUsageCmd,
		contractTerminateCmd, contractRevokeCmd)

	pf := contractCmd.PersistentFlags()
	pf.StringVar(&contractAddr, "addr", "", "Server gRPC address (default: server.grpc_addr from config)")
	pf.BoolVar(&contractJSON, "json", false, "Print the full JSON reply")

	contractCreateCmd.Flags().StringVarP(&contractFile, "file", "f", "", "Contract request (YAML or JSON)")
	_ = contractCreateCmd.MarkFlagRequired("file")

	contractProposeCmd.Flags().StringVarP(&contractFile, "file", "f", "", "Proposed terms (YAML or JSON)")
	contractProposeCmd.Flags().IntVar(&contractBase, "base", 0, "Version the proposal is based on (default: current)")
	contractProposeCmd.Flags().StringVar(&contractParty, "party", string(model.Counterparty), "Proposing party (Me or Counterparty)")
	contractProposeCmd.Flags().StringVar(&contractComment, "comment", "", "Comment recorded in history")
	_ = contractProposeCmd.MarkFlagRequired("file")

	contractSignCmd.Flags().StringVar(&contractParty, "party", string(model.Counterparty), "Accepting party (Me or Counterparty)")
	contractSignCmd.Flags().StringVar(&contractDID, "did", "", "Signer DID (must match the party's identity)")

	contractListCmd.Flags().StringVar(&contractStatus, "status", "", "Filter by status")
	contractListCmd.Flags().StringVar(&contractProduct, "product", "", "Filter by product reference")

	contractDiffCmd.Flags().StringVarP(&contractFormat, "format", "f", "text", "Output format (text|json)")

	uf := contractUsageCmd.Flags()
	uf.StringVar(&usageConnectorDID, "connector-did", "", "Calling connector DID")
	uf.StringVar(&usageSourceIP, "source-ip", "", "Calling address (default: taken from the connection)")
	uf.StringVar(&usageCert, "cert-fingerprint", "", "Client certificate fingerprint")
	uf.StringVar(&usageRole, "role", "", "Caller role")

	contractTerminateCmd.Flags().StringVar(&contractReason, "reason", "", "Reason recorded on the contract")
	contractRevokeCmd.Flags().StringVar(&contractReason, "reason", "", "Reason recorded on the contract")
}

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Negotiate contracts on a running server",
	Long:  "Talks to `pactline serve` over gRPC (pactline.v1.Negotiation).",
}

var contractCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a Draft contract",
	Args:  cobra.NoArgs,
	RunE:  runContractCreate,
}

var contractSubmitCmd = &cobra.Command{
	Use:   "submit <id>",
	Short: "Submit a Draft as version 1",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractSubmit,
}

var contractProposeCmd = &cobra.Command{
	Use:   "propose <id>",
	Short: "Counter-propose terms",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractPropose,
}

var contractSignCmd = &cobra.Command{
	Use:   "sign <id>",
	Short: "Accept the latest proposal and activate the contract",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractSign,
}

var contractShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a contract as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractShow,
}

var contractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contracts",
	Args:  cobra.NoArgs,
	RunE:  runContractList,
}

var contractHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show accepted proposals, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractHistory,
}

var contractDiffCmd = &cobra.Command{
	Use:   "diff <id>",
	Short: "Compare the counterparty's position with ours",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractDiff,
}

var contractUsageCmd = &cobra.Command{
	Use:   "usage <id>",
	Short: "Record one metered access",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractUsage,
}

var contractTerminateCmd = &cobra.Command{
	Use:   "terminate <id>",
	Short: "Abandon a contract before it is signed",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractTerminate,
}

var contractRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "End an Active contract",
	Args:  cobra.ExactArgs(1),
	RunE:  runContractRevoke,
}

// withClient dials the server and runs fn with a connected client.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	addr := contractAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Server.GRPCAddr
	}
	c, err := client.New(addr)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(context.Background(), c)
}

// decodeFile reads YAML or JSON into v through JSON, so v's json tags apply
// to both formats.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(plainDates(raw)); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// plainDates turns YAML timestamps back into the date text they were
// written as.
func plainDates(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = plainDates(item)
		}
	case []any:
		for i, item := range t {
			t[i] = plainDates(item)
		}
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func printContract(cmd *cobra.Command, c *contract.Contract) error {
	w := stdout(cmd)
	if contractJSON {
		return printJSON(w, c)
	}
	fmt.Fprintf(w, "%s  %-16s v%d  rev %d", c.ID, c.Status, c.Version, c.Revision)
	if c.ExecutionStats != nil {
		fmt.Fprintf(w, "  calls %d/%d", c.ExecutionStats.RemainingCalls, c.ExecutionStats.TotalCalls)
	}
	if c.ClosedReason != "" {
		fmt.Fprintf(w, "  (%s)", c.ClosedReason)
	}
	fmt.Fprintln(w)
	return nil
}

func runContractCreate(cmd *cobra.Command, args []string) error {
	var req pb.CreateContractRequest
	if err := decodeFile(contractFile, &req); err != nil {
		return err
	}
	if req.SignatoryDID == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		req.SignatoryDID = cfg.Identity.DID
	}
	return withClient(func(ctx context.Context, c *client.Client) error {
		k, err := c.CreateContract(ctx, &req)
		if err != nil {
			printFieldErrors(cmd, err)
			return err
		}
		return printContract(cmd, k)
	})
}

func runContractSubmit(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		k, err := c.SubmitDraft(ctx, args[0])
		if err != nil {
			return err
		}
		return printContract(cmd, k)
	})
}

func runContractPropose(cmd *cobra.Command, args []string) error {
	party, err := model.ParseParty(contractParty)
	if err != nil {
		return err
	}
	terms, err := readTerms(contractFile)
	if err != nil {
		return err
	}
	return withClient(func(ctx context.Context, c *client.Client) error {
		base := contractBase
		if base == 0 {
			cur, err := c.GetContract(ctx, args[0])
			if err != nil {
				return err
			}
			base = cur.Version
		}
		k, err := c.Propose(ctx, args[0], contract.Proposal{
			Proposer:    party,
			BaseVersion: base,
			Terms:       terms,
			Comment:     contractComment,
		})
		if err != nil {
			printFieldErrors(cmd, err)
			return err
		}
		return printContract(cmd, k)
	})
}

func runContractSign(cmd *cobra.Command, args []string) error {
	party, err := model.ParseParty(contractParty)
	if err != nil {
		return err
	}
	return withClient(func(ctx context.Context, c *client.Client) error {
		k, err := c.AcceptAndSign(ctx, args[0], contract.SigningProof{Party: party, SignerDID: contractDID})
		if err != nil {
			return err
		}
		return printContract(cmd, k)
	})
}

func runContractShow(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		k, err := c.GetContract(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(stdout(cmd), k)
	})
}

func runContractList(cmd *cobra.Command, args []string) error {
	filter := store.Filter{Status: contract.Status(contractStatus), ProductRef: contractProduct}
	return withClient(func(ctx context.Context, c *client.Client) error {
		list, err := c.ListContracts(ctx, filter)
		if err != nil {
			return err
		}
		w := stdout(cmd)
		if contractJSON {
			return printJSON(w, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No contracts.")
			return nil
		}
		fmt.Fprintf(w, "%-38s %-16s %-4s %-30s %s\n", "ID", "STATUS", "VER", "PRODUCT", "NAME")
		for _, k := range list {
			fmt.Fprintf(w, "%-38s %-16s %-4d %-30s %s\n", k.ID, k.Status, k.Version, k.ProductRef, k.Name)
		}
		return nil
	})
}

func runContractHistory(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		hist, err := c.GetHistory(ctx, args[0])
		if err != nil {
			return err
		}
		w := stdout(cmd)
		if contractJSON {
			return printJSON(w, hist)
		}
		for _, h := range hist {
			fmt.Fprintf(w, "v%-3d %-13s %s  %d changes", h.Version, h.Proposer, h.Timestamp.Format("2006-01-02 15:04:05"), len(h.Changes))
			if h.Comment != "" {
				fmt.Fprintf(w, "  %q", h.Comment)
			}
			fmt.Fprintln(w)
		}
		return nil
	})
}

func runContractDiff(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		d, err := c.GetDiff(ctx, args[0])
		if err != nil {
			return err
		}
		if contractFormat == "json" {
			out, err := termdiff.FormatJSON(d)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout(cmd), out)
			return nil
		}
		fmt.Fprint(stdout(cmd), termdiff.FormatText(d))
		return nil
	})
}

func runContractUsage(cmd *cobra.Command, args []string) error {
	rc := inject.RuntimeContext{
		ConnectorDID:    usageConnectorDID,
		SourceIP:        usageSourceIP,
		CertFingerprint: usageCert,
		Role:            usageRole,
	}
	return withClient(func(ctx context.Context, c *client.Client) error {
		res, err := c.RecordUsage(ctx, args[0], rc)
		if err != nil {
			return err
		}
		w := stdout(cmd)
		if contractJSON {
			return printJSON(w, res)
		}
		fmt.Fprintf(w, "allowed: %d of %d calls remaining\n", res.RemainingCalls, res.TotalCalls)
		for _, b := range res.Injected {
			fmt.Fprintf(w, "  %s = %s (%s)\n", b.Key, b.Value, b.Source)
		}
		return nil
	})
}

func runContractTerminate(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		k, err := c.Terminate(ctx, args[0], contractReason)
		if err != nil {
			return err
		}
		return printContract(cmd, k)
	})
}

func runContractRevoke(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		k, err := c.Revoke(ctx, args[0], contractReason)
		if err != nil {
			return err
		}
		return printContract(cmd, k)
	})
}
