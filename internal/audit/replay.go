package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReplayFilter selects one contract's entries. Zero From or To leave that
// end of the window open.
type ReplayFilter struct {
	ContractID string
	From       time.Time
	To         time.Time
}

func (f ReplayFilter) match(e Entry) bool {
	if e.ContractID != f.ContractID {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	return (f.From.IsZero() || !ts.Before(f.From)) && (f.To.IsZero() || !ts.After(f.To))
}

// ReplaySummary tallies a contract's history.
type ReplaySummary struct {
	Total          int    `json:"total"`
	OKCount        int    `json:"ok_count"`
	RejectedCount  int    `json:"rejected_count"`
	ProposalCount  int    `json:"proposal_count"`
	UsageCount     int    `json:"usage_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
	LastStatus     string `json:"last_status"`
}

func (s *ReplaySummary) add(e Entry) {
	s.Total++
	if e.Outcome == OutcomeRejected {
		s.RejectedCount++
	} else {
		s.OKCount++
		s.LastStatus = e.Status
	}
	switch e.Event {
	case EventProposed, EventProposalRejected:
		s.ProposalCount++
	case EventUsage, EventUsageRejected:
		s.UsageCount++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}

// ReplayResult is a contract's filtered history.
type ReplayResult struct {
	ContractID string        `json:"contract_id"`
	Entries    []Entry       `json:"entries"`
	Summary    ReplaySummary `json:"summary"`
}

// Replay reconstructs the history of filter.ContractID from the log at
// path. Lines that do not decode are skipped.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	res := &ReplayResult{ContractID: filter.ContractID}
	err := scanLines(path, func(_ int, line []byte) error {
		var e Entry
		if json.Unmarshal(line, &e) != nil || !filter.match(e) {
			return nil
		}
		res.Entries = append(res.Entries, e)
		res.Summary.add(e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", filter.ContractID, err)
	}
	return res, nil
}
