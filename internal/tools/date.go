package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// DefaultDateFormat is used when the agent passes no format.
const DefaultDateFormat = "%Y-%m-%d"

// DateTool reports the current date. Now and Location can be replaced in tests.
type DateTool struct {
	Now      func() time.Time
	Location *time.Location
}

// NewDateTool returns a DateTool reading the wall clock in loc (local time when nil).
func NewDateTool(loc *time.Location) *DateTool {
	return &DateTool{Now: time.Now, Location: loc}
}

func (t *DateTool) Name() string { return TodayDateName }

func (t *DateTool) Description() string {
	return "Outputs today's date. Use it whenever the claim depends on the current date or may have changed over time."
}

// Call formats the current time with the strftime pattern in input.
func (t *DateTool) Call(_ context.Context, input string) (string, error) {
	format := strings.TrimSpace(input)
	if format == "" {
		format = DefaultDateFormat
	}
	now := time.Now()
	if t.Now != nil {
		now = t.Now()
	}
	if t.Location != nil {
		now = now.In(t.Location)
	}
	out, err := strftime.Format(format, now)
	if err != nil {
		return "", fmt.Errorf("invalid date format %q: %w", format, err)
	}
	return out, nil
}
