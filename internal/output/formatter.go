// Package output provides a set of formatters for query results. It is
// extendable and for now provides two formats: human-readable tables and
// JSON.
package output

import (
	"fmt"
	"strings"

	"ocelot/internal/core"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
)

// Formatter is an interface for formatting query results.
type Formatter interface {
	FormatResult(*core.QueryResult) (string, error)
}

// NewFormatter creates a new Formatter instance based on the given name.
// If no format is specified, defaults to the human-readable format.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatHuman:
		return humanFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'human' or 'json'", name)
	}
}
