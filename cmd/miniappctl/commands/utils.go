// Package commands provides the miniappctl subcommands
package commands

import (
	"time"

	"miniappctl/internal/console"
	"miniappctl/internal/models"
	contextutils "miniappctl/internal/utils"
)

// parseSchema parses a --schema flag value
func parseSchema(value string) (models.SchemaVersion, error) {
	schema, err := models.ParseSchemaVersion(value)
	if err != nil {
		return "", contextutils.NewCodedErrorf(contextutils.ErrInvalidInput, err, "invalid --schema")
	}
	return schema, nil
}

// parseTimestamp checks an optional RFC 3339 flag value
func parseTimestamp(flag, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return contextutils.NewCodedErrorf(contextutils.ErrInvalidInput, err, "invalid --%s %q, want RFC 3339", flag, value)
	}
	return nil
}

// appsOrDefault returns args, or a copy of defaults when no apps were named
func appsOrDefault(args, defaults []string) []string {
	if len(args) > 0 {
		return args
	}
	return append([]string{}, defaults...)
}

// printItems returns a Reporter that prints each item as it is processed
func printItems(p *console.Printer) models.Reporter {
	return p.Item
}
