package activity

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/meshwatch/meshwatch/pkg/types"
)

const (
	// DefaultMaxEntries is used when Format is called with maxEntries <= 0.
	DefaultMaxEntries = 5
	// EmptyText is the text of the single entry returned for an empty feed.
	EmptyText = "No recent activity"
	// previewChars bounds the payload preview of generic events.
	previewChars = 50

	serviceEventType = "service_event"
)

// Format turns raw event records into at most maxEntries feed entries.
//
// events is assumed to be newest first; it is truncated, never re-sorted.
// Empty input yields a single EmptyText entry stamped with now.
func Format(events []json.RawMessage, maxEntries int, now time.Time) []types.ActivityEntry {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if len(events) == 0 {
		return []types.ActivityEntry{{Text: EmptyText, RelativeTime: RelativeTime(now, now), Timestamp: now}}
	}
	if len(events) > maxEntries {
		events = events[:maxEntries]
	}

	out := make([]types.ActivityEntry, 0, len(events))
	for _, raw := range events {
		ev := gjson.ParseBytes(raw)
		ts := eventTime(ev.Get("timestamp"), now)
		out = append(out, types.ActivityEntry{
			Text:         describe(ev),
			RelativeTime: RelativeTime(ts, now),
			Timestamp:    ts,
		})
	}
	return out
}

// describe renders the human-readable text of one event.
func describe(ev gjson.Result) string {
	typ := ev.Get("type").String()
	data := ev.Get("data")

	if typ == serviceEventType {
		eventType := strings.ReplaceAll(data.Get("event_type").String(), "_", " ")
		return eventType + " from " + data.Get("source_service").String()
	}
	return typ + ": " + preview(data) + "..."
}

// preview returns the first previewChars characters of the compact JSON
// encoding of data.
func preview(data gjson.Result) string {
	raw := "null"
	if data.Exists() {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(data.Raw)); err == nil {
			raw = buf.String()
		} else {
			raw = data.Raw
		}
	}
	if utf8.RuneCountInString(raw) <= previewChars {
		return raw
	}
	return string([]rune(raw)[:previewChars])
}

// Layouts tried, in order, for event timestamps. The monitoring service emits
// naive ISO-8601 values, which are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// eventTime parses an event's timestamp field. Numbers are epoch
// milliseconds. A missing or unparseable value yields now.
func eventTime(v gjson.Result, now time.Time) time.Time {
	switch v.Type {
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC()
	case gjson.String:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v.Str); err == nil {
				return t
			}
		}
	}
	return now
}
