// Package bookings turns loosely-shaped reservation, payment and offer documents into
// totals, payment states, time buckets and per-client groupings.
//
// Documents arrive as map[string]any from two places: PocketBase records and legacy
// Firestore snapshots. Field names and value types differ between the two (and between
// older and newer Firestore documents), so every read goes through the helpers here.
package bookings

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
)

// lookup returns the first non-nil value found under any of keys.
// A key containing dots walks nested maps ("pricing.total").
func lookup(doc map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := lookupPath(doc, key); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupPath(doc map[string]any, key string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	if v, ok := doc[key]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	nested, ok := asMap(doc[head])
	if !ok {
		return nil, false
	}
	return lookupPath(nested, rest)
}

func stringField(doc map[string]any, keys ...string) string {
	v, ok := lookup(doc, keys...)
	if !ok {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func amountField(doc map[string]any, keys ...string) float64 {
	v, _ := lookup(doc, keys...)
	return Amount(v)
}

func dateField(doc map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		v, ok := lookupPath(doc, key)
		if !ok || v == nil {
			continue
		}
		if t, ok := ParseDate(v); ok {
			return t
		}
	}
	return time.Time{}
}

// Amount coerces a money value to a float rounded to cents.
// Unparseable values (and booleans) count as zero.
func Amount(v any) float64 {
	var f float64
	switch t := v.(type) {
	case nil, bool:
		return 0
	case string:
		f = parseAmountString(t)
	case json.Number:
		f, _ = t.Float64()
	default:
		var err error
		if f, err = cast.ToFloat64E(v); err != nil {
			return 0
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return round2(f)
}

// parseAmountString accepts "1200", "1,200.50", "€1.200,50", "$ 99" and similar.
func parseAmountString(s string) float64 {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" || clean == "-" {
		return 0
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		decimals := len(clean) - lastComma - 1
		if strings.Count(clean, ",") == 1 && decimals > 0 && decimals <= 2 {
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 || isThousandsDot(clean, lastDot) {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	f, err := cast.ToFloat64E(clean)
	if err != nil {
		return 0
	}
	return f
}

// isThousandsDot reports whether a single dot groups thousands ("1.200") rather than
// marking decimals ("12.50", "0.125").
func isThousandsDot(s string, dot int) bool {
	whole := strings.TrimPrefix(s[:dot], "-")
	return len(s)-dot-1 == 3 && len(whole) >= 1 && len(whole) <= 3 && whole != "0"
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate reads a date from any of the shapes stored over the years: time values,
// RFC3339 and PocketBase strings, bare dates, serialized Firestore timestamps and
// unix epochs (seconds, or milliseconds above 1e11).
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case interface{ Time() time.Time }:
		tt := t.Time()
		return tt, !tt.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case map[string]any:
		secs, ok := lookup(t, "seconds", "_seconds")
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := lookup(t, "nanoseconds", "_nanoseconds", "nanos")
		return time.Unix(cast.ToInt64(secs), cast.ToInt64(nanos)).UTC(), true
	case bool:
		return time.Time{}, false
	}

	n, err := cast.ToFloat64E(v)
	if err != nil || n <= 0 {
		if m, ok := asMap(v); ok {
			return ParseDate(m)
		}
		return time.Time{}, false
	}
	if n > 1e11 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Unix(int64(n), 0).UTC(), true
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return t, true
	case string, []byte, json.RawMessage:
		var m map[string]any
		if err := json.Unmarshal(rawBytes(t), &m); err != nil {
			return nil, false
		}
		return m, true
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, false
	}
	return m, true
}

// asList accepts a list of maps, or a map of id → map (ids are copied into "id" when
// the entry has none; entries are returned in key order).
func asList(v any) []map[string]any {
	switch t := v.(type) {
	case nil:
		return nil
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := asMap(item); ok {
				out = append(out, m)
			}
		}
		return out
	case string, []byte, json.RawMessage:
		var decoded any
		if err := json.Unmarshal(rawBytes(t), &decoded); err != nil {
			return nil
		}
		return asList(decoded)
	}

	if m, ok := asMap(v); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]map[string]any, 0, len(m))
		for _, k := range keys {
			entry, ok := asMap(m[k])
			if !ok {
				continue
			}
			if _, has := entry["id"]; !has {
				copied := make(map[string]any, len(entry)+1)
				for ek, ev := range entry {
					copied[ek] = ev
				}
				copied["id"] = k
				entry = copied
			}
			out = append(out, entry)
		}
		return out
	}

	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil
	}
	return asList(items)
}

func rawBytes(v any) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	case json.RawMessage:
		return t
	}
	return nil
}
