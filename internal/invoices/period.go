package invoices

import (
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
)

const periodLayout = "2006-01"

var periodRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Period is one calendar month of billing, [Start, End).
type Period struct {
	Key   string
	Start time.Time
	End   time.Time
}

// ParsePeriod validates a YYYY-MM billing month.
func ParsePeriod(raw string) (Period, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Period{}, pkgerrors.New(pkgerrors.CodeInvalidPeriod, "billing month is required")
	}
	if !periodRe.MatchString(value) {
		return Period{}, pkgerrors.Newf(pkgerrors.CodeInvalidPeriod, "billing month %q must be YYYY-MM", raw)
	}
	start, err := time.ParseInLocation(periodLayout, value, time.UTC)
	if err != nil {
		return Period{}, pkgerrors.Wrap(pkgerrors.CodeInvalidPeriod, err, "billing month is not a valid month")
	}
	return Period{Key: value, Start: start, End: start.AddDate(0, 1, 0)}, nil
}
