package escrow

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/missionhub/missionhub/internal/domain/payment"
)

// ReviewRule is a configurable expression that flags payments for manual
// review, evaluated over the payment's attributes. An empty expression
// flags nothing; "true"/"false" literals short-circuit.
type ReviewRule struct {
	expression string
}

func NewReviewRule(expression string) *ReviewRule {
	return &ReviewRule{expression: strings.TrimSpace(expression)}
}

// Matches evaluates the rule against a payment.
func (r *ReviewRule) Matches(p *payment.Payment) (bool, error) {
	if r == nil || r.expression == "" {
		return false, nil
	}
	switch strings.ToLower(r.expression) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	expr, err := govaluate.NewEvaluableExpression(r.expression)
	if err != nil {
		return false, err
	}
	params := map[string]interface{}{
		"amount":   float64(p.Amount),
		"currency": p.Currency,
		"type":     string(p.Type),
		"retries":  float64(p.Metadata.Retries),
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, errors.New("review rule did not evaluate to boolean")
	}
	return b, nil
}
