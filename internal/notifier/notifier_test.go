package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"RSIPipeline/internal/model"
)

func sampleSummary() *model.RunSummary {
	start := time.Date(2024, 5, 31, 21, 30, 0, 0, time.UTC)
	return &model.RunSummary{
		RunID:      "3f0c",
		StartedAt:  start,
		FinishedAt: start.Add(12 * time.Second),
		Attempted:  3,
		Succeeded:  []string{"AAPL", "MSFT"},
		Failed:     []model.SymbolFailure{{Symbol: "BAD", Reason: "data_unavailable: BAD: fetch bars: <404>"}},
		Persisted:  model.PersistOutcome{Success: true, InsertedCount: 2},
		Pruned:     4,
	}
}

func TestFormatRunSummary(t *testing.T) {
	msg := FormatRunSummary(sampleSummary())

	for _, want := range []string{
		"🟡",
		"3 attempted, 2 ok, 1 failed",
		"2 records written",
		"Pruned: 4",
		"Duration: 12s",
		"BAD: data_unavailable: BAD: fetch bars: &lt;404&gt;",
		"<code>3f0c</code>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatRunSummary_States(t *testing.T) {
	skipped := &model.RunSummary{PersistSkipped: true, SkipReason: "no successful results"}
	if msg := FormatRunSummary(skipped); !strings.HasPrefix(msg, "⚠️") || !strings.Contains(msg, "skipped (no successful results)") {
		t.Errorf("unexpected skipped message:\n%s", msg)
	}

	failed := &model.RunSummary{Succeeded: []string{"A"}, Persisted: model.PersistOutcome{Error: "storage error: disk full"}}
	if msg := FormatRunSummary(failed); !strings.HasPrefix(msg, "❌") || !strings.Contains(msg, "storage error: disk full") {
		t.Errorf("unexpected failed message:\n%s", msg)
	}

	many := sampleSummary()
	many.Failed = nil
	for i := 0; i < 15; i++ {
		many.Failed = append(many.Failed, model.SymbolFailure{Symbol: "X", Reason: "r"})
	}
	if msg := FormatRunSummary(many); !strings.Contains(msg, "and 5 more") {
		t.Errorf("expected truncated failure list:\n%s", msg)
	}
}

func TestTelegramNotifier_NotifyRun(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken123/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramOptions{BotToken: "token123", ChatID: "42", BaseURL: server.URL})
	defer n.Close()

	if err := n.NotifyRun(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("NotifyRun() error: %v", err)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" || !strings.Contains(got["text"], "RSI pipeline run") {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestTelegramNotifier_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramOptions{BotToken: "t", ChatID: "1", BaseURL: server.URL, MaxElapsed: 10 * time.Second})
	defer n.Close()

	if err := n.SendWithRetry(context.Background(), "hello"); err != nil {
		t.Fatalf("SendWithRetry() error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestTelegramNotifier_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramOptions{BotToken: "t", ChatID: "1", BaseURL: server.URL})
	defer n.Close()

	err := n.SendWithRetry(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected client error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
