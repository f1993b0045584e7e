package activity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{0, "just now"},
		{30 * time.Second, "just now"},
		{59 * time.Second, "just now"},
		{60 * time.Second, "1m ago"},
		{125 * time.Second, "2m ago"},
		{59*time.Minute + 59*time.Second, "59m ago"},
		{7200 * time.Second, "2h ago"},
		{23*time.Hour + 59*time.Minute, "23h ago"},
		{172800 * time.Second, "2d ago"},
		{-10 * time.Minute, "just now"},
	}
	for _, tc := range tests {
		if got := RelativeTime(now.Add(-tc.age), now); got != tc.want {
			t.Errorf("RelativeTime(age=%v): got %q, want %q", tc.age, got, tc.want)
		}
	}
}

func TestFormat_ServiceEvent(t *testing.T) {
	got := Format(rawEvents(
		`{"type":"service_event","timestamp":"2024-03-01T11:58:00","data":{"event_type":"workflow_completed","source_service":"workflow_service","payload":{}}}`,
	), 5, now)

	if len(got) != 1 {
		t.Fatalf("entries: got %d, want 1", len(got))
	}
	if got[0].Text != "workflow completed from workflow_service" {
		t.Errorf("Text: got %q", got[0].Text)
	}
	if got[0].RelativeTime != "2m ago" {
		t.Errorf("RelativeTime: got %q, want 2m ago", got[0].RelativeTime)
	}
	if !got[0].Timestamp.Equal(now.Add(-2 * time.Minute)) {
		t.Errorf("Timestamp: got %v", got[0].Timestamp)
	}
}

func TestFormat_GenericEventPreview(t *testing.T) {
	long := `{"type":"alert","data":{"message":"disk usage above threshold on node-17","severity":"critical","value":97.5}}`
	short := `{"type":"metric","data":{"a": 1}}`

	got := Format(rawEvents(long, short), 5, now)

	if !strings.HasPrefix(got[0].Text, "alert: {") || !strings.HasSuffix(got[0].Text, "...") {
		t.Errorf("long Text: got %q", got[0].Text)
	}
	previewLen := len(got[0].Text) - len("alert: ") - len("...")
	if previewLen != 50 {
		t.Errorf("long preview length: got %d, want 50", previewLen)
	}
	if got[1].Text != `metric: {"a":1}...` {
		t.Errorf("short Text: got %q", got[1].Text)
	}
}

func TestFormat_TruncatesWithoutReordering(t *testing.T) {
	var evs []string
	for i := 0; i < 9; i++ {
		evs = append(evs, `{"type":"service_event","data":{"event_type":"e`+string(rune('0'+i))+`","source_service":"s"}}`)
	}

	got := Format(rawEvents(evs...), 4, now)
	if len(got) != 4 {
		t.Fatalf("entries: got %d, want 4", len(got))
	}
	for i, e := range got {
		want := "e" + string(rune('0'+i)) + " from s"
		if e.Text != want {
			t.Errorf("entry[%d]: got %q, want %q", i, e.Text, want)
		}
	}
}

func TestFormat_DefaultMax(t *testing.T) {
	var evs []string
	for i := 0; i < 8; i++ {
		evs = append(evs, `{"type":"x","data":{}}`)
	}
	if got := Format(rawEvents(evs...), 0, now); len(got) != DefaultMaxEntries {
		t.Errorf("entries: got %d, want %d", len(got), DefaultMaxEntries)
	}
}

func TestFormat_Empty(t *testing.T) {
	for _, in := range [][]json.RawMessage{nil, {}} {
		got := Format(in, 5, now)
		if len(got) != 1 {
			t.Fatalf("entries: got %d, want 1", len(got))
		}
		if got[0].Text != EmptyText || got[0].RelativeTime != "just now" {
			t.Errorf("sentinel: got %+v", got[0])
		}
	}
}

func TestFormat_Timestamps(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want time.Time
	}{
		{"rfc3339", `"2024-03-01T11:00:00Z"`, now.Add(-time.Hour)},
		{"rfc3339 offset", `"2024-03-01T12:00:00+02:00"`, now.Add(-2 * time.Hour)},
		{"naive iso", `"2024-02-28T12:00:00.123456"`, time.Date(2024, 2, 28, 12, 0, 0, 123456000, time.UTC)},
		{"epoch ms", `1709294340000`, now.Add(-time.Minute)},
		{"garbage", `"yesterday"`, now},
		{"missing", ``, now},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := `{"type":"x","data":{}}`
			if tc.ts != "" {
				ev = `{"type":"x","timestamp":` + tc.ts + `,"data":{}}`
			}
			got := Format(rawEvents(ev), 5, now)
			if !got[0].Timestamp.Equal(tc.want) {
				t.Errorf("Timestamp: got %v, want %v", got[0].Timestamp, tc.want)
			}
		})
	}
}

func TestFormat_MissingData(t *testing.T) {
	got := Format(rawEvents(`{"type":"heartbeat"}`), 5, now)
	if got[0].Text != "heartbeat: null..." {
		t.Errorf("Text: got %q", got[0].Text)
	}
}

func rawEvents(evs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(evs))
	for i, e := range evs {
		out[i] = json.RawMessage(e)
	}
	return out
}
