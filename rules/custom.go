package rules

import (
	"fmt"

	"github.com/shibukawa/aggcheck"
)

// customRules turns configured rules into catalog entries. Their rows are reported as
// "column: value" pairs since no typed record exists for them.
func customRules(defs []aggcheck.CustomRule) ([]*Rule, error) {
	out := make([]*Rule, 0, len(defs))

	for i, def := range defs {
		severity := Severity(def.Severity)
		switch severity {
		case SeverityCritical, SeverityNormal:
		default:
			return nil, fmt.Errorf("%w: rules.custom: '%s' has unknown severity '%s'", aggcheck.ErrConfigValidation, def.Name, def.Severity)
		}

		out = append(out, &Rule{
			ID:          firstCustomID + i,
			Name:        def.Name,
			Story:       Story(def.Story),
			Severity:    severity,
			Description: def.Description,
			Query:       def.Query,
			Pass:        def.Pass,
			Step:        "Custom rule " + def.Name,
			format:      genericRows(fmt.Sprintf("Rule %s found violations:", def.Name)),
		})
	}

	return out, nil
}
