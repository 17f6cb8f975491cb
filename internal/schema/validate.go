package schema

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidSchemaName indicates a tenant identifier failed the allow-list check.
var ErrInvalidSchemaName = errors.New("invalid schema name")

// Postgres identifiers cannot be bound as query parameters, so the schema
// name is interpolated into the SET statement. This pattern is the single
// injection boundary for that interpolation: lowercase letter first, then
// lowercase letters, digits and underscores, max 63 bytes (the Postgres
// identifier limit).
var schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateSchemaName rejects any identifier not matching the allow-list.
// A rejection is security-relevant and must never be coerced into a default.
func ValidateSchemaName(name string) error {
	if !schemaNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, name)
	}
	return nil
}
