package core

import "strings"

// ValidationError carries per-field validation failures. It renders as a 422
// with field details attached.
type ValidationError map[string][]string

// Error implements the error interface.
func (v ValidationError) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	return "validation failed: " + strings.Join(fields, ", ")
}

// Add appends a message to a field, creating the field entry if needed.
func (v ValidationError) Add(field, message string) {
	v[field] = append(v[field], message)
}
