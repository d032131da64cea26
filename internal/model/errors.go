package model

import "fmt"

// ValidationError reports an invalid template or pattern parameter. It is
// returned at construction time only; the scheduling engine never sees an
// invalid pattern at runtime.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports that the entity a reconciliation targeted changed
// underneath it, e.g. the template was deleted between classification and
// apply.
type ConflictError struct {
	TemplateID string
	Reason     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on template %s: %s", e.TemplateID, e.Reason)
}
