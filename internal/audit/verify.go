package audit

import (
	"encoding/json"
	"fmt"
)

// VerifyResult is the outcome of walking a log's hash chain.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Head      string `json:"head,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// chainError is the first broken link found by Verify.
type chainError struct {
	line int
	msg  string
}

func (e *chainError) Error() string { return e.msg }

// Verify walks the log at path and reports the first line whose prev_hash
// does not match the hash of the line before it.
func Verify(path string) VerifyResult {
	want := GenesisHash
	lines := 0
	err := scanLines(path, func(n int, line []byte) error {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return &chainError{line: n, msg: fmt.Sprintf("malformed entry: %v", err)}
		}
		switch {
		case e.PrevHash == want:
		case n == 1:
			return &chainError{line: n, msg: fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", e.PrevHash)}
		default:
			return &chainError{line: n, msg: fmt.Sprintf("hash mismatch: expected %s, got %s", want, e.PrevHash)}
		}
		want = HashLine(line)
		lines = n
		return nil
	})
	if err != nil {
		if ce, ok := err.(*chainError); ok {
			return VerifyResult{Lines: lines, Error: ce.msg, ErrorLine: ce.line}
		}
		return VerifyResult{Error: err.Error()}
	}
	return VerifyResult{Valid: true, Lines: lines, Head: want}
}
