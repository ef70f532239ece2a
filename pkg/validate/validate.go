// Package validate provides input validation, sanitization, and limits for
// the batchjobs package.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/curatorhq/batchjobs/pkg/core"
)

// Limits applied to submissions and stored records.
const (
	// MaxKindLength is the maximum length for job kinds
	MaxKindLength = 64

	// MaxItems is the hard limit on items per submitted job
	MaxItems = 10000

	// MaxAttempts is the hard limit for retry attempts per item
	MaxAttempts = 10

	// MaxBatchSize is the hard limit for the runner batch size
	MaxBatchSize = 100

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 2048

	// MaxMetadataEntries is the maximum number of caller metadata entries
	MaxMetadataEntries = 32
)

// validKind matches alphanumeric, hyphens, underscores, and dots
var validKind = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// Kind validates a job kind.
func Kind(k core.Kind) error {
	if k == "" {
		return core.ErrInvalidKind
	}
	if len(k) > MaxKindLength {
		return core.ErrKindTooLong
	}
	if !validKind.MatchString(string(k)) {
		return core.ErrInvalidKind
	}
	return nil
}

// Items validates a submitted item slice.
func Items(items []core.Item) error {
	if len(items) == 0 {
		return core.ErrNoItems
	}
	if len(items) > MaxItems {
		return core.ErrTooManyItems
	}
	return nil
}

// Metadata validates caller-supplied job metadata.
func Metadata(md map[string]any) error {
	if len(md) > MaxMetadataEntries {
		return core.ErrMetadataTooBig
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampAttempts ensures a retry attempt count is within limits
func ClampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxAttempts {
		return MaxAttempts
	}
	return n
}

// ClampBatchSize ensures a batch size is within limits
func ClampBatchSize(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}
