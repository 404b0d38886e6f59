package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Order struct {
	ID          string
	OrderNumber string
	ClientName  string
	Data        json.RawMessage
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderSchemaViolation carries every failed payload rule.
type OrderSchemaViolation struct {
	Errors []string
}

func (e *OrderSchemaViolation) Error() string {
	return "order payload invalid: " + strings.Join(e.Errors, "; ")
}

func (e *OrderSchemaViolation) Unwrap() error {
	return ErrValidation
}

type OrderFilter struct {
	Limit int
}
