package termdiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the result as human-readable text.
func FormatText(r *Result) string {
	header := "Terms diff"
	if r.Base != "" || r.Candidate != "" {
		header = fmt.Sprintf("Terms diff: %s → %s", r.Base, r.Candidate)
	}
	if !r.HasChanges {
		return header + "\n\nNo changes detected.\n"
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")

	if len(r.Changes) > 0 {
		b.WriteString("\n  Negotiable terms:\n")
		for _, c := range r.Changes {
			fmt.Fprintf(&b, "    %-20s %s → %s", c.Key+":", display(c.From.String()), display(c.To.String()))
			if c.Comment != "" {
				fmt.Fprintf(&b, "  (%s)", c.Comment)
			}
			b.WriteString("\n")
		}
	}

	if len(r.ActionChanges) > 0 {
		b.WriteString("\n  Actions:\n")
		for _, ac := range r.ActionChanges {
			switch ac.Type {
			case "added":
				fmt.Fprintf(&b, "    + %s\n", ac.Action)
			case "removed":
				fmt.Fprintf(&b, "    - %s\n", ac.Action)
			}
		}
	}

	return b.String()
}

// FormatJSON renders the result as JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func display(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
