package model

// Party labels who authored a proposal. Both parties share one state machine.
type Party string

const (
	Me           Party = "Me"
	Counterparty Party = "Counterparty"
)

// ParseParty accepts the canonical labels case-sensitively.
func ParseParty(s string) (Party, error) {
	switch Party(s) {
	case Me, Counterparty:
		return Party(s), nil
	default:
		return "", Errorf(KindInvalidArgument, "unknown party %q (want Me or Counterparty)", s)
	}
}

// Other returns the opposite party.
func (p Party) Other() Party {
	if p == Me {
		return Counterparty
	}
	return Me
}

// Role is the initiator's side of the exchange, fixed at contract creation.
type Role string

const (
	Consumer Role = "Consumer"
	Provider Role = "Provider"
)

// ParseRole accepts Consumer or Provider.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case Consumer, Provider:
		return Role(s), nil
	default:
		return "", Errorf(KindInvalidArgument, "unknown role %q (want Consumer or Provider)", s)
	}
}
