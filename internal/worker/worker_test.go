package worker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/logger"
)

type chanQueue struct {
	ch chan string
}

func (q *chanQueue) Enqueue(_ context.Context, _ string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.ch <- string(data)
	return nil
}

func (q *chanQueue) Dequeue(ctx context.Context, _ string) (string, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recorder struct {
	mu     sync.Mutex
	bodies []string
	fail   int32
	hits   int32
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	atomic.AddInt32(&r.hits, 1)
	if atomic.AddInt32(&r.fail, -1) >= 0 {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, string(body))
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func newTestWorker(q *chanQueue, webhook, slackURL string) *Worker {
	w := New(q, webhook, slackURL, logger.Discard())
	w.Backoff = func(int) time.Duration { return 0 }
	return w
}

func TestWorker_DeliversWebhookAndSlack(t *testing.T) {
	hook, slackHook := &recorder{}, &recorder{}
	hookSrv := httptest.NewServer(http.HandlerFunc(hook.handler))
	defer hookSrv.Close()
	slackSrv := httptest.NewServer(http.HandlerFunc(slackHook.handler))
	defer slackSrv.Close()

	q := &chanQueue{ch: make(chan string, 4)}
	w := newTestWorker(q, hookSrv.URL, slackSrv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	d := int64(5_400_000)
	require.NoError(t, q.Enqueue(ctx, "", entity.AttendanceEvent{Event: "attendance.time_out", UserName: "Juan", ShiftDurationMs: &d}))

	assert.Eventually(t, func() bool { return len(hook.received()) == 1 && len(slackHook.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, hook.received()[0], `"event":"attendance.time_out"`)
	assert.Contains(t, slackHook.received()[0], "Juan timed out")
	assert.Contains(t, slackHook.received()[0], "1h 30m")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_Retries(t *testing.T) {
	hook := &recorder{fail: 2}
	srv := httptest.NewServer(http.HandlerFunc(hook.handler))
	defer srv.Close()

	w := newTestWorker(&chanQueue{}, srv.URL, "")
	w.processTask(context.Background(), `{"event":"attendance.time_in","user_id":"u1"}`)

	assert.Equal(t, int32(3), atomic.LoadInt32(&hook.hits))
	assert.Len(t, hook.received(), 1)
}

func TestWorker_GivesUp(t *testing.T) {
	hook := &recorder{fail: 100}
	srv := httptest.NewServer(http.HandlerFunc(hook.handler))
	defer srv.Close()

	w := newTestWorker(&chanQueue{}, srv.URL, "")
	w.processTask(context.Background(), `{"event":"attendance.time_in"}`)

	assert.Equal(t, int32(w.MaxRetries), atomic.LoadInt32(&hook.hits))
	assert.Empty(t, hook.received())
}

func TestWorker_DropsMalformed(t *testing.T) {
	hook := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(hook.handler))
	defer srv.Close()

	w := newTestWorker(&chanQueue{}, srv.URL, "")
	w.processTask(context.Background(), `not json`)

	assert.Zero(t, atomic.LoadInt32(&hook.hits))
}

func TestSlackText(t *testing.T) {
	assert.Equal(t, ":white_check_mark: u1 timed in at 2024-05-06T09:00:00Z",
		SlackText(entity.AttendanceEvent{Event: "attendance.time_in", UserID: "u1", OccurredAt: "2024-05-06T09:00:00Z"}))
}
