package transform

// convert.go turns raw export cells into pgtype values.
//
// Coercion never fails: empty or unparseable cells become NULL, except for
// integer fields which fall back to zero.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TimestampLayouts are tried in order; the first that parses wins.
var TimestampLayouts = []string{
	"2/1/2006 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2/1/2006",
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgTimestamp parses s against TimestampLayouts.
func ToPgTimestamp(s string) pgtype.Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Timestamp{Valid: false}
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamp{Time: t, Valid: true}
		}
	}
	return pgtype.Timestamp{Valid: false}
}

// ToPgInt4 converts s to pgtype.Int4, truncating decimals ("3.0" is 3).
// The result is always valid; unparseable input yields 0.
func ToPgInt4(s string) pgtype.Int4 {
	f, ok := parseNumber(s)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return pgtype.Int4{Int32: 0, Valid: true}
	}
	return pgtype.Int4{Int32: int32(f), Valid: true}
}

// ToPgFloat8 converts s to pgtype.Float8, invalid when unparseable.
func ToPgFloat8(s string) pgtype.Float8 {
	f, ok := parseNumber(s)
	if !ok {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// TextValue returns the string of t, or "" when t is NULL.
func TextValue(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
