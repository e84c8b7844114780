package budget

import (
	"time"

	"github.com/ppiankov/pactline/internal/model"
)

// QuotaKeys are the negotiated constraint keys that set the call quota,
// in lookup order.
var QuotaKeys = []string{"usageCount", "count"}

// ExecutionStats is the metering record of an Active contract.
type ExecutionStats struct {
	TotalCalls     int64      `json:"totalCalls"`
	RemainingCalls int64      `json:"remainingCalls"`
	LastCallTime   *time.Time `json:"lastCallTime"`
}

// Init returns fresh stats with limit calls remaining. Negative limits
// count as zero.
func Init(limit int64) ExecutionStats {
	if limit < 0 {
		limit = 0
	}
	return ExecutionStats{RemainingCalls: limit}
}

// LimitFromTerms reads the quota from agreed terms: usageCount, then
// count, else zero.
func LimitFromTerms(t model.Terms) int64 {
	for _, key := range QuotaKeys {
		if n, ok := t.Get(key).Int(); ok {
			return n
		}
	}
	return 0
}

// Clone returns a deep copy.
func (s ExecutionStats) Clone() ExecutionStats {
	out := s
	if s.LastCallTime != nil {
		t := *s.LastCallTime
		out.LastCallTime = &t
	}
	return out
}
