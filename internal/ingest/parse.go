package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. Source sheets mix ISO dates, Excel
// datetime serializations, and Mexican day-first dates.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// ParseAmount turns a raw amount cell into a non-negative float. Currency
// symbols, thousands separators, and spaces are stripped; anything still
// unparseable, and any negative value, becomes 0 rather than an error.
func ParseAmount(value any) float64 {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return v
	case int:
		if v < 0 {
			return 0
		}
		return float64(v)
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(v))
		if cleaned == "" {
			return 0
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	}
	return 0
}

// ParseDate turns a raw date cell into an ISO "YYYY-MM-DD" string. Cells
// that cannot be read as a date become the empty string, which means
// "unknown" everywhere downstream.
func ParseDate(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format("2006-01-02")
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return ""
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t.Format("2006-01-02")
			}
		}
		return ""
	}
	return ""
}

func cellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return "1"
		}
		return ""
	case time.Time:
		return v.Format("2006-01-02")
	}
	return strings.TrimSpace(fmt.Sprintf("%v", value))
}
