package models

import (
	"encoding/json"
	"testing"
)

func TestLogsResponseAccessors(t *testing.T) {
	var empty LogsResponse
	if err := json.Unmarshal([]byte(`{"luauExecutionSessionTaskLogs":[],"nextPageToken":""}`), &empty); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if empty.FirstEntry() != nil {
		t.Fatalf("expected no entry")
	}
	if _, ok := empty.NextPage(); ok {
		t.Fatalf("expected no next page")
	}

	payload := `{
		"luauExecutionSessionTaskLogs": [{
			"path": "p/logs/1",
			"messages": ["hello", "world"],
			"structuredMessages": [
				{"message": "hello", "createTime": "t1", "messageType": "OUTPUT"},
				{"message": "careful", "createTime": "t2", "messageType": "WARNING"}
			]
		}],
		"nextPageToken": "abc"
	}`
	var page LogsResponse
	if err := json.Unmarshal([]byte(payload), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entry := page.FirstEntry()
	if entry == nil || len(entry.Messages) != 2 || entry.Messages[1] != "world" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if len(entry.StructuredMessages) != 2 || entry.StructuredMessages[1].MessageType != MessageTypeWarning {
		t.Fatalf("unexpected structured messages: %+v", entry.StructuredMessages)
	}
	if token, ok := page.NextPage(); !ok || token != "abc" {
		t.Fatalf("expected next page token abc, got %q", token)
	}
}

func TestParseTaskPath(t *testing.T) {
	path := "universes/111/places/222/versions/3/luau-execution-sessions/a1-b2/tasks/c3_d4"
	got, ok := ParseTaskPath(path)
	if !ok {
		t.Fatalf("expected %s to parse", path)
	}
	want := TaskPath{UniverseID: "111", PlaceID: "222", PlaceVersion: "3", SessionID: "a1-b2", TaskID: "c3_d4"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if _, ok := ParseTaskPath("universes/111/places/222/luau-execution-session-tasks"); ok {
		t.Fatalf("expected malformed path to be rejected")
	}
}
