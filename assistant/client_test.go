package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateThreadSetsHeaders(t *testing.T) {
	var gotBeta, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/threads" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotBeta = r.Header.Get("OpenAI-Beta")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(Thread{ID: "thread_abc"})
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test")
	th, err := c.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if th.ID != "thread_abc" {
		t.Fatalf("CreateThread() id = %q, want thread_abc", th.ID)
	}
	if gotBeta != "assistants=v2" {
		t.Fatalf("OpenAI-Beta header = %q, want assistants=v2", gotBeta)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization header = %q, want Bearer sk-test", gotAuth)
	}
}

func TestCreateRunPostsAssistantID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_abc/runs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["assistant_id"] != "asst_1" {
			t.Errorf("assistant_id = %q, want asst_1", body["assistant_id"])
		}
		_ = json.NewEncoder(w).Encode(Run{ID: "run_1", ThreadID: "thread_abc", Status: RunStatusQueued})
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test")
	run, err := c.CreateRun(context.Background(), "thread_abc", "asst_1")
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID != "run_1" || run.Status != RunStatusQueued {
		t.Fatalf("CreateRun() = %+v, want run_1/queued", run)
	}
}

func TestGetRunCarriesLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"run_1","status":"failed","last_error":{"code":"rate_limit_exceeded","message":"slow down"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	run, err := c.GetRun(context.Background(), "thread_abc", "run_1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != RunStatusFailed {
		t.Fatalf("GetRun() status = %q, want failed", run.Status)
	}
	if run.LastError == nil || run.LastError.Code != ErrCodeRateLimited {
		t.Fatalf("GetRun() last_error = %+v, want code rate_limit_exceeded", run.LastError)
	}
}

func TestListMessagesNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":"msg_2","role":"assistant","content":[{"type":"text","text":{"value":"hi there"}}]},
			{"id":"msg_1","role":"user","content":[{"type":"text","text":{"value":"hi"}}]}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	msgs, err := c.ListMessages(context.Background(), "thread_abc", 5)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ListMessages() len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleAssistant || msgs[0].PlainText() != "hi there" {
		t.Fatalf("newest message = %+v, want assistant 'hi there'", msgs[0])
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	_, err := c.CreateThread(context.Background())
	if err == nil || !strings.Contains(err.Error(), "assistants http 401: invalid api key") {
		t.Fatalf("CreateThread() error = %v, want decoded api error", err)
	}
}

func TestIsTerminalRunStatus(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{status: RunStatusQueued, want: false},
		{status: RunStatusInProgress, want: false},
		{status: RunStatusCancelling, want: false},
		{status: RunStatusRequiresAction, want: false},
		{status: RunStatusCompleted, want: true},
		{status: RunStatusFailed, want: true},
		{status: RunStatusCancelled, want: true},
		{status: RunStatusExpired, want: true},
	}
	for _, tc := range cases {
		if got := IsTerminalRunStatus(tc.status); got != tc.want {
			t.Fatalf("IsTerminalRunStatus(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestPlainTextSkipsNonText(t *testing.T) {
	m := Message{Content: []MessageContent{
		{Type: "image_file"},
		{Type: "text", Text: &MessageText{Value: "a"}},
		{Type: "text", Text: &MessageText{Value: "b"}},
	}}
	if got := m.PlainText(); got != "a\nb" {
		t.Fatalf("PlainText() = %q, want %q", got, "a\nb")
	}
}
