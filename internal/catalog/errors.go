package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrDuplicateSKU  = errors.New("catalog: duplicate sku")
	ErrInvalidStatus = errors.New("catalog: invalid status")
)

// ItemError describes one rejected entry of a batch.
type ItemError struct {
	Field   string `json:"field"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ValidationError rejects a whole request. No state is changed when it is
// returned.
type ValidationError struct {
	Message string      `json:"message"`
	Items   []ItemError `json:"errors,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Items) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("%s[%d]: %s", item.Field, item.Index, item.Message))
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field string, index int, format string, args ...interface{}) {
	e.Items = append(e.Items, ItemError{Field: field, Index: index, Message: fmt.Sprintf(format, args...)})
}
