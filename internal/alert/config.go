package alert

// Alert event names.
const (
	EventActivated        = "activated"
	EventQuotaExhausted   = "quota_exhausted"
	EventRateLimited      = "rate_limited"
	EventProposalRejected = "proposal_rejected"
	EventTerminated       = "terminated"
	EventRevoked          = "revoked"
)

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"`   // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"`   // ["activated", "quota_exhausted"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp    string `json:"timestamp"`
	Event        string `json:"event"`
	ContractID   string `json:"contract_id"`
	ContractName string `json:"contract_name,omitempty"`
	ProductRef   string `json:"product_ref,omitempty"`
	Actor        string `json:"actor,omitempty"`
	Version      int    `json:"version"`
	Status       string `json:"status"`
	Kind         string `json:"kind,omitempty"`
	Reason       string `json:"reason,omitempty"`
}
