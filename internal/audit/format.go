package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const rule = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders res as a table, one row per entry, framed by a
// header and a summary line.
func FormatTimeline(res *ReplayResult) string {
	if len(res.Entries) == 0 {
		return fmt.Sprintf("Contract: %s | No entries found.\n", res.ContractID)
	}

	s := res.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Contract: %s | %s to %s UTC\n%s\n", res.ContractID,
		clock(s.FirstTimestamp, "2006-01-02 15:04:05"), clock(s.LastTimestamp, "15:04:05"), rule)
	for _, e := range res.Entries {
		mark := " "
		if e.Outcome == OutcomeRejected {
			mark = "x"
		}
		note := e.Reason
		if e.ErrorKind != "" {
			note = e.ErrorKind + ": " + note
		}
		fmt.Fprintf(&b, "%s %-8s v%-3d %-18s %-13s %-17s %s\n",
			mark, clock(e.Timestamp, "15:04:05"), e.Version, e.Event, e.Actor, e.Status, clip(note, 40))
	}
	fmt.Fprintf(&b, "%s\nSummary: %d ok, %d rejected | %d proposals, %d usage | Status: %s\n",
		rule, s.OKCount, s.RejectedCount, s.ProposalCount, s.UsageCount, s.LastStatus)
	return b.String()
}

// FormatJSON renders res as indented JSON.
func FormatJSON(res *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode replay of %s: %w", res.ContractID, err)
	}
	return string(data), nil
}

func clock(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
