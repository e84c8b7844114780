package audit

// Events recorded for contract transitions.
const (
	EventCreated          = "created"
	EventSubmitted        = "submitted"
	EventProposed         = "proposed"
	EventProposalRejected = "proposal_rejected"
	EventActivated        = "activated"
	EventUsage            = "usage"
	EventUsageRejected    = "usage_rejected"
	EventTerminated       = "terminated"
	EventRevoked          = "revoked"
)

// Outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// Fact is one runtime value bound to an Injected key.
type Fact struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Value  string `json:"value"`
}

// Entry is one line in the hash-chained JSONL audit log.
// All fields are structs or slices of structs so json.Marshal output is
// deterministic.
type Entry struct {
	Timestamp     string `json:"ts"`
	RequestID     string `json:"request_id,omitempty"`
	ContractID    string `json:"contract_id"`
	Event         string `json:"event"`
	Actor         string `json:"actor,omitempty"`
	Version       int    `json:"version"`
	Status        string `json:"status"`
	Outcome       string `json:"outcome"`
	ErrorKind     string `json:"error_kind,omitempty"`
	Reason        string `json:"reason,omitempty"`
	SignatureHash string `json:"signature_hash,omitempty"`
	Injected      []Fact `json:"injected,omitempty"`
	PrevHash      string `json:"prev_hash"`
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(Entry) error
}

// Discard is a Recorder that drops every entry.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(Entry) error { return nil }
