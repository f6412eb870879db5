package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bank-client/pkg/metrics/memory"
	"bank-client/pkg/models"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []models.Notification
	block     chan struct{}
	err       error
	calls     int64
}

func (s *recordingSink) Deliver(ctx context.Context, n models.Notification) error {
	atomic.AddInt64(&s.calls, 1)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.delivered = append(s.delivered, n)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	for i, n := range s.delivered {
		out[i] = n.Title
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	d := New(&recordingSink{}, Config{})
	defer d.Close()

	if cap(d.queue) != 100 {
		t.Errorf("Expected default queue size 100, got %d", cap(d.queue))
	}
	if d.config.Workers != 1 {
		t.Errorf("Expected 1 worker, got %d", d.config.Workers)
	}
	if d.config.MaxWaitTime != 10*time.Millisecond {
		t.Errorf("Expected default MaxWaitTime 10ms, got %v", d.config.MaxWaitTime)
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := New(sink, Config{})

	for _, title := range []string{"a", "b", "c"} {
		if !d.Dispatch(models.Notification{Title: title}) {
			t.Fatalf("Dispatch %s rejected", title)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got := sink.titles()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d deliveries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if stats := d.Stats(); stats.Total != 3 || stats.Dropped != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	collector := memory.NewMemoryCollector()
	d := NewWithMetrics(sink, Config{QueueSize: 1, MaxWaitTime: -1}, collector)

	// The worker picks up the first and blocks; the second fills the queue.
	d.Dispatch(models.Notification{Title: "1"})
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&sink.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Dispatch(models.Notification{Title: "2"})

	if err := d.Send(context.Background(), models.Notification{Title: "3"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if stats := d.Stats(); stats.Dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", stats.Dropped)
	}
	if got := collector.Snapshot().Queues["recording"].Dropped; got != 1 {
		t.Errorf("Expected dropped metric 1, got %d", got)
	}

	close(sink.block)
	d.Close()
}

func TestDispatcher_SendAfterClose(t *testing.T) {
	d := New(&recordingSink{}, Config{})
	d.Close()
	d.Close()

	if err := d.Send(context.Background(), models.Notification{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if d.Dispatch(models.Notification{}) {
		t.Error("Expected Dispatch to report rejection")
	}
}

func TestDispatcher_CountsFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("gateway down")}
	collector := memory.NewMemoryCollector()
	d := NewWithMetrics(sink, Config{}, collector)

	d.Dispatch(models.Notification{Title: "x"})
	if err := d.Flush(time.Second); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	d.Close()

	if stats := d.Stats(); stats.Failed != 1 {
		t.Errorf("Expected 1 failed delivery, got %d", stats.Failed)
	}
	if q := collector.Snapshot().Queues["recording"]; q.Failed != 1 {
		t.Errorf("Expected failed metric 1, got %+v", q)
	}
}

func TestPushSink_ExpoFormat(t *testing.T) {
	var got PushMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Decode failed: %v", err)
		}
		w.Write([]byte(`{"data":{"status":"ok","id":"abc"}}`))
	}))
	defer server.Close()

	sink, err := NewPushSink(PushConfig{URL: server.URL, To: "ExponentPushToken[xyz]"})
	if err != nil {
		t.Fatalf("NewPushSink failed: %v", err)
	}

	n := models.Notification{
		ID:      "local-1",
		Type:    models.NotificationSuccess,
		Title:   "Transfer sent",
		Message: "You sent $10.00",
		Action:  &models.NotificationAction{Kind: models.ActionTransfer, Ref: "42"},
	}
	if err := sink.Deliver(context.Background(), n); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if got.To != "ExponentPushToken[xyz]" || got.Title != "Transfer sent" || got.Body != "You sent $10.00" {
		t.Errorf("Unexpected message: %+v", got)
	}
	if got.Sound != "default" {
		t.Errorf("Expected default sound, got %q", got.Sound)
	}
	if got.Data["action"] != models.ActionTransfer || got.Data["ref"] != "42" {
		t.Errorf("Expected action data, got %v", got.Data)
	}
}

func TestPushSink_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadGateway, ``},
		{"error ticket", http.StatusOK, `{"data":{"status":"error","message":"DeviceNotRegistered"}}`},
		{"request errors", http.StatusOK, `{"errors":[{"code":"VALIDATION_ERROR","message":"bad token"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			sink, err := NewPushSink(PushConfig{URL: server.URL, To: "t"})
			if err != nil {
				t.Fatalf("NewPushSink failed: %v", err)
			}
			if err := sink.Deliver(context.Background(), models.Notification{Title: "x"}); !errors.Is(err, ErrPushRejected) {
				t.Errorf("Expected ErrPushRejected, got %v", err)
			}
		})
	}
}

func TestNewPushSink_RequiresToken(t *testing.T) {
	if _, err := NewPushSink(PushConfig{}); err == nil {
		t.Error("Expected error without device token")
	}
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("nope")}

	err := MultiSink{ok, bad}.Deliver(context.Background(), models.Notification{Title: "m"})
	if err == nil {
		t.Error("Expected joined error")
	}
	if got := ok.titles(); len(got) != 1 {
		t.Errorf("Expected delivery to the healthy sink, got %v", got)
	}
}
