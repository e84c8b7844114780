package alert

import (
	"encoding/json"
	"fmt"
)

// Payload formats accepted in Config.Format. Anything else renders the
// generic Event JSON.
const (
	FormatGeneric   = "generic"
	FormatSlack     = "slack"
	FormatPagerDuty = "pagerduty"
)

// FormatPayload renders event as a webhook body.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case FormatSlack:
		return json.Marshal(slackMessage(event))
	case FormatPagerDuty:
		return json.Marshal(pagerDutyAlert(event))
	default:
		return json.Marshal(event)
	}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

func slackMessage(e Event) map[string][]slackBlock {
	name := e.ContractName
	if name == "" {
		name = e.ContractID
	}
	field := func(label, value string) slackText {
		return slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:* %s", label, value)}
	}
	return map[string][]slackBlock{"blocks": {
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "pactline: " + e.Event}},
		{Type: "section", Fields: []slackText{
			field("Contract", name),
			field("Version", fmt.Sprintf("%d (%s)", e.Version, e.Status)),
			field("Actor", e.Actor),
			field("Reason", e.Reason),
		}},
	}}
}

type pagerDutyEvent struct {
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key,omitempty"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	CustomDetails map[string]any `json:"custom_details"`
}

// pagerDutyAlert dedups on contract and version so retries of one
// transition collapse into a single incident.
func pagerDutyAlert(e Event) pagerDutyEvent {
	var dedup string
	if e.ContractID != "" {
		dedup = fmt.Sprintf("pactline/%s/v%d/%s", e.ContractID, e.Version, e.Event)
	}
	return pagerDutyEvent{
		EventAction: "trigger",
		DedupKey:    dedup,
		Payload: pagerDutyPayload{
			Summary:  fmt.Sprintf("pactline %s: %s", e.Event, e.ContractID),
			Severity: severity(e.Event),
			Source:   "pactline",
			CustomDetails: map[string]any{
				"contract_id": e.ContractID,
				"product_ref": e.ProductRef,
				"version":     e.Version,
				"status":      e.Status,
				"kind":        e.Kind,
				"reason":      e.Reason,
			},
		},
	}
}

func severity(event string) string {
	switch event {
	case EventRevoked, EventTerminated:
		return "error"
	case EventQuotaExhausted, EventRateLimited:
		return "warning"
	default:
		return "info"
	}
}
