package apiutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/Picklepoint/internal/models"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// PathID parses the named path wildcard as a positive ID.
func PathID(r *http.Request, name string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(name), name)
}

// ParseDate reads a YYYY-MM-DD date as midnight in loc.
func ParseDate(raw, field string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}
	if loc == nil {
		loc = time.Local
	}
	parsed, err := time.ParseInLocation(models.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, FieldError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return parsed, nil
}

// ParseBoundedInt reads an optional integer query value, returning fallback
// when raw is empty.
func ParseBoundedInt(raw, field string, fallback, min, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return 0, FieldError{Field: field, Reason: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return value, nil
}
