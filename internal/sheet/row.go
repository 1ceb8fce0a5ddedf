// Package sheet defines the row contract the spreadsheet collaborator
// produces and the typed decoders that turn loose rows into domain
// records. All defensive cell coercion lives here: malformed or missing
// cells coerce to zero values and never fail a run.
package sheet

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is one spreadsheet row: column name to primitive value. Missing
// columns are absent, not nil. Values are strings or numbers depending
// on how the source cell was typed.
type Row map[string]any

// BlankDate is rendered for missing or blank date cells so that
// string-compare-based sorting downstream stays stable.
const BlankDate = "-"

// dateSerialEpoch is the spreadsheet date-serial epoch (serial 1 is
// 1899-12-31; the off-by-two accounts for the 1900 leap-year bug kept
// for file compatibility). Conversion is done in UTC and formatted
// without any timezone shifting.
var dateSerialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Str returns the first present column as a trimmed string. Numeric
// cells are formatted without a trailing ".0"; anything else coerces to
// the empty string.
func (r Row) Str(cols ...string) string {
	for _, col := range cols {
		v, ok := r[col]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64:
			if t == math.Trunc(t) && math.Abs(t) < 1e15 {
				return strconv.FormatInt(int64(t), 10)
			}
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

// Num returns the first present column as a float64. String cells are
// parsed accepting a comma decimal separator and a currency prefix;
// anything unparseable coerces to zero.
func (r Row) Num(cols ...string) float64 {
	for _, col := range cols {
		v, ok := r[col]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t
		case int:
			return float64(t)
		case string:
			s := strings.TrimSpace(t)
			s = strings.TrimPrefix(s, "R$")
			s = strings.TrimSpace(s)
			// Cells follow the pt-BR convention: comma decimal, dot
			// thousands ("1.250,50"). A dot with no comma in sight is a
			// plain decimal point, not a separator.
			if strings.Contains(s, ",") {
				s = strings.ReplaceAll(s, ".", "")
				s = strings.ReplaceAll(s, ",", ".")
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// Int returns the first present column as an int, via Num.
func (r Row) Int(cols ...string) int {
	return int(r.Num(cols...))
}

// Date returns the first present column rendered as dd/mm/yyyy. Numeric
// cells are treated as spreadsheet date serials and converted in UTC;
// string cells pass through trimmed; blank or missing cells render as
// the BlankDate sentinel.
func (r Row) Date(cols ...string) string {
	for _, col := range cols {
		v, ok := r[col]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t <= 0 {
				return BlankDate
			}
			return dateSerialEpoch.AddDate(0, 0, int(t)).Format("02/01/2006")
		case int:
			if t <= 0 {
				return BlankDate
			}
			return dateSerialEpoch.AddDate(0, 0, t).Format("02/01/2006")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return BlankDate
			}
			return s
		}
	}
	return BlankDate
}
