package termsuggest

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompletionItemJSONOmitsUnsetFlags(t *testing.T) {
	item := CompletionItem{Label: "git", Detail: "git", Icon: IconSymbolMethod, ReplacementLength: 2}
	data, err := json.Marshal(item)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if strings.Contains(s, "isFile") || strings.Contains(s, "isDirectory") || strings.Contains(s, "isKeyword") {
		t.Errorf("expected unset flags to be omitted, got %s", s)
	}
	if !strings.Contains(s, `"replacementIndex":0`) {
		t.Errorf("expected replacementIndex to be present at zero, got %s", s)
	}
}

func TestFrameRequestIDJSON(t *testing.T) {
	f := Frame{Type: "request", RequestID: 42}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"request_id":42`) {
		t.Errorf("expected request_id key in JSON, got %s", data)
	}

	var decoded Frame
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.RequestID != 42 || decoded.Type != "request" {
		t.Errorf("unexpected round trip: %+v", decoded)
	}
}

func TestFrameOutputIsBase64(t *testing.T) {
	f := Frame{Type: "output", Data: []byte("\x1b]633;A\x07")}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"data":"G102MzM7QQc="`) {
		t.Errorf("expected base64 data, got %s", data)
	}
}

func TestReplyUnavailableOmitsAvailable(t *testing.T) {
	data, err := json.Marshal(Reply{Event: "completions", RequestID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "available") {
		t.Errorf("expected available to be omitted when false, got %s", data)
	}

	data, err = json.Marshal(Reply{Event: "error", Error: &Error{Code: "invalid_frame", Message: "bad"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"error":{"code":"invalid_frame","message":"bad"}`) {
		t.Errorf("unexpected error reply: %s", data)
	}
}

func TestPromptSnapshotLeadingText(t *testing.T) {
	tests := []struct {
		name string
		snap PromptSnapshot
		want string
	}{
		{"prefix wins", PromptSnapshot{Value: "git status", Prefix: "git s", CursorIndex: 3}, "git s"},
		{"cut from value", PromptSnapshot{Value: "git status", CursorIndex: 3}, "git"},
		{"cursor past end", PromptSnapshot{Value: "ls", CursorIndex: 9}, "ls"},
		{"negative cursor", PromptSnapshot{Value: "ls", CursorIndex: -1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.LeadingText(); got != tt.want {
				t.Errorf("LeadingText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPromptSnapshotInputEnd(t *testing.T) {
	tests := []struct {
		name string
		snap PromptSnapshot
		want int
	}{
		{"no ghost text", PromptSnapshot{Value: "git", GhostTextIndex: -1}, 3},
		{"ghost text", PromptSnapshot{Value: "git status", GhostTextIndex: 5}, 5},
		{"ghost index out of range", PromptSnapshot{Value: "git", GhostTextIndex: 7}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.InputEnd(); got != tt.want {
				t.Errorf("InputEnd() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResultKindIsKeyword(t *testing.T) {
	for _, k := range []ResultKind{KindKeyword, KindDynamicKeyword} {
		if !k.IsKeyword() {
			t.Errorf("expected kind %d to be a keyword", k)
		}
	}
	if KindCommand.IsKeyword() {
		t.Error("command kind is not a keyword")
	}
}
