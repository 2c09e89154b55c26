// Package compat is the spec-compatibility rule engine: pure validators
// enforcing cross-field consistency between job types, dataset types, model
// families and runtime limits for training and serving submissions.
//
// Validators fail fast: the first violated rule's error is returned and no
// later rules run.
package compat

import "fmt"

// RuleError identifies the rule and field a submission violated.
type RuleError struct {
	Rule    string
	Field   string
	Message string
}

func (e *RuleError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Rule, e.Field, e.Message)
}

func ruleErrorf(rule, field, format string, args ...any) error {
	return &RuleError{Rule: rule, Field: field, Message: fmt.Sprintf(format, args...)}
}
