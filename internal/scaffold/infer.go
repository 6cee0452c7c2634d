package scaffold

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Inferred column types, spelled for the Postgres warehouse dbt runs against.
const (
	TypeBigint    = "bigint"
	TypeDouble    = "double precision"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeText      = "text"
)

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2006/01/02",
	"20060102",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
}

// inferTypes returns one type per header from the sampled rows.
func inferTypes(headers []string, rows [][]string) []string {
	cols := make([][]string, len(headers))
	for _, row := range rows {
		for i := range headers {
			if v := strings.TrimSpace(row[i]); v != "" {
				cols[i] = append(cols[i], v)
			}
		}
	}
	types := make([]string, len(headers))
	for i := range headers {
		types[i] = InferType(cols[i])
	}
	return types
}

// InferType picks the narrowest type every value satisfies. Empty samples are
// text. Integers win over booleans so 0/1 columns stay numeric.
func InferType(values []string) string {
	if len(values) == 0 {
		return TypeText
	}
	switch {
	case allMatch(values, isInt):
		return TypeBigint
	case allMatch(values, isBool):
		return TypeBoolean
	case allMatch(values, isFloat):
		return TypeDouble
	}

	anyTime := false
	for _, v := range values {
		ok, hasTime := parseDateOrTimestamp(v)
		if !ok {
			return TypeText
		}
		anyTime = anyTime || hasTime
	}
	if anyTime {
		return TypeTimestamp
	}
	return TypeDate
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "t", "f", "yes", "no", "y", "n":
		return true
	}
	return false
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func parseDateOrTimestamp(s string) (ok, hasTime bool) {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true, true
		}
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true, false
		}
	}
	return false, false
}

// NormalizeName turns header text into a lowercase ASCII identifier: accents
// are stripped, runs of space, dash, dot and underscore become one
// underscore, other characters are dropped. A leading digit gets a "c_"
// prefix and an empty result becomes "col".
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		ascii = strings.ToLower(s)
	}

	var b strings.Builder
	underscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.' || r == '/':
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	switch {
	case name == "":
		return "col"
	case name[0] >= '0' && name[0] <= '9':
		return "c_" + name
	}
	return name
}
