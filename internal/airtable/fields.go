// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package airtable

import (
	"math"
	"strings"
	"time"
)

// Field names used by the Shiba base.
const (
	FieldSlackID           = "slack id"
	FieldHackatimeProjects = "Hackatime Projects"
	FieldName              = "Name"
	FieldHackatimeSeconds  = "HackatimeSeconds"
	FieldGame              = "Game"
	FieldCreatedAt         = "Created At"
	FieldHoursSpent        = "HoursSpent"
	FieldEmail             = "Email"
)

// ProjectNames normalizes a claimed-projects field. Airtable returns either
// a comma-separated string or a list (multi-select, lookup). Entries are
// trimmed and blanks dropped; order is kept.
func ProjectNames(v any) []string {
	var raw []string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(val, ",")
	case []string:
		raw = val
	case []any:
		raw = make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	default:
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// StringValue returns a text field. Lookup fields arrive as lists, in
// which case the first non-blank string is used.
func StringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	case []string:
		for _, s := range val {
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// LinkedIDs normalizes a linked-record field whose entries are either
// record-id strings or objects carrying an "id" key.
func LinkedIDs(v any) []string {
	var ids []string
	add := func(id string) {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	switch val := v.(type) {
	case string:
		add(val)
	case []string:
		for _, id := range val {
			add(id)
		}
	case []any:
		for _, item := range val {
			switch it := item.(type) {
			case string:
				add(it)
			case map[string]any:
				if id, ok := it["id"].(string); ok {
					add(id)
				}
			}
		}
	}
	return ids
}

// IntValue returns a numeric field as int64, rounding to nearest.
func IntValue(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(math.Round(val))
	case int:
		return int64(val)
	case int64:
		return val
	}
	return 0
}

// TimeValue parses an ISO-8601 date-time field.
func TimeValue(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormulaString quotes s as an Airtable formula string literal.
func FormulaString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// EqualsFormula builds "{field} = 'value'".
func EqualsFormula(field, value string) string {
	return "{" + field + "} = " + FormulaString(value)
}
