package common

import (
	"fmt"
	"slices"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// AllowedFormats intersects the configured formats with the ones a command
// can render, keeping the configured order. An empty configuration allows
// every available format.
func AllowedFormats(configured, available []string) []string {
	if len(configured) == 0 {
		return available
	}
	allowed := make([]string, 0, len(configured))
	for _, f := range configured {
		if slices.Contains(available, f) {
			allowed = append(allowed, f)
		}
	}
	return allowed
}
