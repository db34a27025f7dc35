package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/holocene/internal/types"
)

const (
	// MaxNameLength is the maximum plan name length in runes.
	MaxNameLength = 200

	// MaxBatchOperations is the maximum number of operations per batch request.
	MaxBatchOperations = 1000
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface so a ValidationError can travel as an error value.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateMeasure returns an error if the value is NaN, infinite or negative.
func ValidateMeasure(field string, value float64) *ValidationError {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &ValidationError{
			Field:   field,
			Message: "must be a finite number",
		}
	}
	if value < 0 {
		return &ValidationError{
			Field:   field,
			Message: "must not be negative",
		}
	}
	return nil
}

// ValidatePlanPatch checks the fields present in a patch. Absent fields are
// not checked; a patch may be partial on both create and update.
func ValidatePlanPatch(prefix string, p *types.PlanPatch) []ValidationError {
	c := &Collector{}
	if p == nil {
		c.Add(&ValidationError{Field: prefix, Message: "is required"})
		return c.Errors()
	}

	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	if p.Name != nil {
		c.Add(ValidateRequired(field("name"), *p.Name))
		c.Add(ValidateUTF8(field("name"), *p.Name))
		c.Add(ValidateNoNullBytes(field("name"), *p.Name))
		c.Add(ValidateMaxLength(field("name"), *p.Name, MaxNameLength))
	}

	measures := []struct {
		name  string
		value *float64
	}{
		{"length", p.Length},
		{"width", p.Width},
		{"height", p.Height},
		{"weight", p.Weight},
	}
	for _, m := range measures {
		if m.value != nil {
			c.Add(ValidateMeasure(field(m.name), *m.value))
		}
	}

	if p.Quantity != nil && *p.Quantity < 0 {
		c.Add(&ValidationError{Field: field("quantity"), Message: "must not be negative"})
	}

	return c.Errors()
}

// ValidateOperation checks the shape of a single batch operation.
// Payload contents are not inspected here; see ValidatePlanPatch.
func ValidateOperation(index int, op types.Operation) []ValidationError {
	c := &Collector{}
	prefix := fmt.Sprintf("operations[%d]", index)

	if err := ValidateEnum(prefix+".action", string(op.Action), types.Actions); err != nil {
		c.Add(err)
		return c.Errors()
	}

	switch op.Action {
	case types.ActionCreate:
		if op.ID != "" {
			c.Add(&ValidationError{Field: prefix + ".id", Message: "must not be set on CREATE"})
		}
		if op.Data == nil {
			c.Add(&ValidationError{Field: prefix + ".data", Message: "is required"})
		}
	case types.ActionUpdate:
		c.Add(ValidateRequired(prefix+".id", op.ID))
		if op.Data == nil {
			c.Add(&ValidationError{Field: prefix + ".data", Message: "is required"})
		}
	case types.ActionDelete:
		c.Add(ValidateRequired(prefix+".id", op.ID))
	}

	return c.Errors()
}

// ValidateBatchRequest checks request-level constraints and the shape of
// every operation. Any error rejects the entire batch.
func ValidateBatchRequest(req types.BatchRequest) []ValidationError {
	c := &Collector{}

	if req.Operations == nil {
		c.Add(&ValidationError{Field: "operations", Message: "is required"})
		return c.Errors()
	}
	if len(req.Operations) > MaxBatchOperations {
		c.Add(&ValidationError{
			Field:   "operations",
			Message: fmt.Sprintf("exceeds maximum of %d operations", MaxBatchOperations),
		})
		return c.Errors()
	}

	for i, op := range req.Operations {
		for _, err := range ValidateOperation(i, op) {
			c.Add(&err)
		}
	}

	return c.Errors()
}
