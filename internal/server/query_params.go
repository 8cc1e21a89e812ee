package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/kpireport/internal/instant"
)

// parseRequiredDate reads a YYYY-MM-DD query value as a business-zone day.
func parseRequiredDate(times *instant.Normalizer, name, value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
	}
	parsed, err := times.ParseDate(trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return parsed, nil
}
