package odrl

import "github.com/ppiankov/pactline/internal/model"

// Operator is an ODRL comparison operator.
type Operator string

const (
	Eq       Operator = "eq"
	Gt       Operator = "gt"
	Gte      Operator = "gte"
	Lt       Operator = "lt"
	Lte      Operator = "lte"
	Neq      Operator = "neq"
	HasPart  Operator = "hasPart"
	IsPartOf Operator = "isPartOf"
	IsA      Operator = "isA"
	IsAllOf  Operator = "isAllOf"
	IsAnyOf  Operator = "isAnyOf"
	IsNoneOf Operator = "isNoneOf"
)

// Operators lists the vocabulary in display order.
var Operators = []Operator{Eq, Gt, Gte, Lt, Lte, Neq, HasPart, IsPartOf, IsA, IsAllOf, IsAnyOf, IsNoneOf}

var legacyOperators = map[string]Operator{
	"gteq": Gte,
	"lteq": Lte,
}

// ParseOperator accepts the vocabulary plus the legacy gteq/lteq spellings,
// which are normalised.
func ParseOperator(s string) (Operator, error) {
	if op, ok := legacyOperators[s]; ok {
		return op, nil
	}
	for _, op := range Operators {
		if string(op) == s {
			return op, nil
		}
	}
	return "", model.Errorf(model.KindInvalidArgument, "unknown operator %q", s)
}
