package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Azmorus/GPTScreener/internal/analysis"
)

// FormatPrice formats a price, keeping more precision for sub-unit prices.
func FormatPrice(price float64) string {
	if price >= 10 || price <= -10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.4f", price)
}

// FormatCount formats an integer with thousands separators.
func FormatCount(n int) string {
	s := strconv.Itoa(n)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if negative {
		s = "-" + s
	}
	return s
}

// FormatDate formats a candle date.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// FormatDateTime formats a fetch timestamp in local time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatOutcome renders a detection outcome for humans.
func FormatOutcome(o analysis.Outcome) string {
	switch o {
	case analysis.OutcomeInsufficientData:
		return "not enough data"
	case analysis.OutcomeNoPatternDetected:
		return "no pattern"
	case analysis.OutcomePatternsDetected:
		return "patterns detected"
	default:
		return string(o)
	}
}

// FormatPatterns joins matched pattern names, or "-" when there are none.
func FormatPatterns(r analysis.Result) string {
	names := r.Names()
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

// ParsePriceList parses the --prices flag into raw elements for
// normalization. A list holding ';' or whitespace is split on those alone, so
// commas inside a value are read as digit grouping ("1,234.5;1,300").
// Otherwise commas separate values. Malformed entries are kept so they are
// reported as dropped.
func ParsePriceList(s string) []interface{} {
	if strings.ContainsFunc(s, isPriceLineSeparator) {
		return ParsePriceLines(s)
	}
	return toRaw(strings.FieldsFunc(s, func(r rune) bool { return r == ',' }))
}

// ParsePriceLines parses file or stdin input holding one price per line.
// Values are separated by newlines, whitespace or ';' and may carry grouping
// commas.
func ParsePriceLines(s string) []interface{} {
	return toRaw(strings.FieldsFunc(s, isPriceLineSeparator))
}

func isPriceLineSeparator(r rune) bool {
	return r == ';' || unicode.IsSpace(r)
}

func toRaw(fields []string) []interface{} {
	raw := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			raw = append(raw, f)
		}
	}
	return raw
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
