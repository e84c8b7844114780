package budget

import (
	"fmt"
	"time"

	"github.com/ppiankov/pactline/internal/model"
)

// CheckResult is the outcome of a quota check.
type CheckResult struct {
	Exceeded bool
	Used     int64
	Reason   string
}

// Check reports whether another call would exceed the quota.
func Check(stats ExecutionStats) CheckResult {
	if stats.RemainingCalls <= 0 {
		return CheckResult{
			Exceeded: true,
			Used:     stats.TotalCalls,
			Reason:   fmt.Sprintf("quota exhausted: %d calls used, 0 remaining", stats.TotalCalls),
		}
	}
	return CheckResult{Used: stats.TotalCalls}
}

// Consume meters one call. At zero remaining it returns QuotaExhausted and
// the stats unchanged.
func Consume(stats ExecutionStats, now time.Time) (ExecutionStats, error) {
	if r := Check(stats); r.Exceeded {
		return stats, model.Errorf(model.KindQuotaExhausted, "%s", r.Reason)
	}
	out := stats.Clone()
	out.TotalCalls++
	out.RemainingCalls--
	t := now.UTC()
	out.LastCallTime = &t
	return out, nil
}
