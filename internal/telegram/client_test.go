package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/twodoracle/internal/analysis"
	"github.com/rewired-gh/twodoracle/internal/models"
)

// botServer is a minimal Bot API stand-in that records sent message texts
type botServer struct {
	mu       sync.Mutex
	texts    []string
	failures int
}

func (b *botServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"oracle","username":"oracle_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failures > 0 {
			b.failures--
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests"}`))
			return
		}
		if err := r.ParseForm(); err == nil {
			b.texts = append(b.texts, r.PostForm.Get("text"))
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, b *botServer) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(srv.Close)

	c, err := NewClientWithEndpoint("TOKEN", "42", srv.URL+"/bot%s/%s", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("NewClientWithEndpoint failed: %v", err)
	}
	return c
}

func TestNewClient_InvalidChatID(t *testing.T) {
	if _, err := NewClientWithEndpoint("TOKEN", "not-a-number", "http://127.0.0.1/bot%s/%s", 1, time.Millisecond); err == nil {
		t.Error("Expected error for invalid chat ID")
	}
}

func TestSendResult(t *testing.T) {
	b := &botServer{}
	c := newTestClient(t, b)

	r := &models.SessionResult{Set: "1,346.23", Value: "57,388.58", TwoD: "38"}
	if err := c.SendResult(context.Background(), "2024-07-29", models.S1630, r); err != nil {
		t.Fatalf("SendResult failed: %v", err)
	}

	if len(b.texts) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(b.texts))
	}
	text := b.texts[0]
	for _, want := range []string{"*38*", "2024\\-07\\-29", "1,346\\.23", "16:30"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected message to contain %q, got:\n%s", want, text)
		}
	}
}

func TestSend_RetriesUntilSuccess(t *testing.T) {
	b := &botServer{failures: 2}
	c := newTestClient(t, b)

	if err := c.SendError(context.Background(), errors.New("feed returned an empty response")); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}
	if len(b.texts) != 1 {
		t.Errorf("Expected message after retries, got %d", len(b.texts))
	}
}

func TestSend_GivesUp(t *testing.T) {
	b := &botServer{failures: 10}
	c := newTestClient(t, b)

	if err := c.SendRecovery(context.Background(), 3, time.Minute); err == nil {
		t.Error("Expected error after exhausting retries")
	}
}

func TestFormatAnalysis(t *testing.T) {
	out := analysis.Analyze(analysis.Input{
		LiveIndex:         "1,346.23",
		PreviousAndRecent: []models.TwoD{"25", "13", "47", "09", "88"},
		EvaluationWindow:  []models.TwoD{"36", "20", "63", "70"},
	})

	msg := formatAnalysis(&out)
	if !strings.Contains(msg, "Previous: *25*") {
		t.Errorf("Expected previous result in digest, got:\n%s", msg)
	}
	if strings.Count(msg, "\\. *") != digestSize {
		t.Errorf("Expected %d ranked lines, got:\n%s", digestSize, msg)
	}
	if !strings.Contains(msg, "not a probability") {
		t.Error("Expected heuristic disclaimer")
	}
}

func TestFormatAnalysis_NoCandidates(t *testing.T) {
	msg := formatAnalysis(&analysis.Output{})
	if !strings.Contains(msg, "No candidates remain") {
		t.Errorf("Expected empty notice, got:\n%s", msg)
	}
	if !strings.Contains(msg, "Main: \\-") {
		t.Errorf("Expected escaped placeholder for empty tier, got:\n%s", msg)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1,346.23", "1,346\\.23"},
		{"Power+Brother", "Power\\+Brother"},
		{"a_b*c", "a\\_b\\*c"},
		{"(x)!", "\\(x\\)\\!"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{90 * time.Minute, "1h30m"},
		{2 * time.Hour, "2h0m"},
		{30 * time.Minute, "30m"},
		{45 * time.Second, "45s"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tt.duration, result, tt.expected)
		}
	}
}
