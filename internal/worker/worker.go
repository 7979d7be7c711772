package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/paincake00/geoclock/internal/attendance"
	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/logger"
	"github.com/paincake00/geoclock/internal/usecase"
)

// Worker отвечает за фоновую доставку событий посещаемости (вебхук и Slack).
type Worker struct {
	Queue           usecase.QueueRepository
	QueueName       string
	WebhookURL      string
	SlackWebhookURL string
	MaxRetries      int
	Client          *http.Client
	Log             logger.Logger
	// Backoff задержка перед повторной попыткой i (с нуля).
	Backoff func(i int) time.Duration

	wg sync.WaitGroup
}

// New создает новый экземпляр воркера.
func New(q usecase.QueueRepository, webhookURL, slackWebhookURL string, l logger.Logger) *Worker {
	return &Worker{
		Queue:           q,
		QueueName:       usecase.AttendanceQueue, // та же очередь, что и в сервисе
		WebhookURL:      webhookURL,
		SlackWebhookURL: slackWebhookURL,
		MaxRetries:      3,
		Client:          &http.Client{Timeout: 5 * time.Second},
		Log:             l,
		Backoff: func(i int) time.Duration {
			return time.Duration(2*i+1) * time.Second // Линейная задержка: 1s, 3s, 5s...
		},
	}
}

// Start запускает цикл обработки задач и возвращается после отмены ctx и завершения начатых задач.
func (w *Worker) Start(ctx context.Context) {
	w.Log.Info("Starting background worker...")
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.Log.Info("Worker stopped")
			return
		default:
			// Dequeue блокируется до появления задачи, отмена контекста прерывает ожидание.
			payloadJSON, err := w.Queue.Dequeue(ctx, w.QueueName)
			if err != nil {
				if ctx.Err() != nil {
					w.Log.Info("Worker stopped")
					return
				}
				w.Log.Warn("worker dequeue error", err)
				sleep(ctx, time.Second)
				continue
			}

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.processTask(ctx, payloadJSON)
			}()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// processTask доставляет одно событие с повторными попытками.
func (w *Worker) processTask(ctx context.Context, data string) {
	var event entity.AttendanceEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		w.Log.Error("dropping malformed attendance event", err, map[string]interface{}{"payload": data})
		return
	}

	if w.WebhookURL != "" {
		w.retry(ctx, "webhook", func() error { return w.sendWebhook(ctx, data) })
	}
	if w.SlackWebhookURL != "" {
		w.retry(ctx, "slack", func() error { return w.notifySlack(ctx, event) })
	}
}

func (w *Worker) retry(ctx context.Context, target string, send func() error) {
	for i := 0; i < w.MaxRetries; i++ {
		err := send()
		if err == nil {
			return
		}
		w.Log.Warn(fmt.Sprintf("failed to deliver %s (attempt %d/%d)", target, i+1, w.MaxRetries), err)
		if i < w.MaxRetries-1 && w.Backoff != nil {
			sleep(ctx, w.Backoff(i))
		}
		if ctx.Err() != nil {
			break
		}
	}
	w.Log.Error("given up on " + target + " delivery")
}

// sendWebhook выполняет HTTP POST запрос с телом события.
func (w *Worker) sendWebhook(ctx context.Context, data string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.WebhookURL, bytes.NewBufferString(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status: %d", resp.StatusCode)
	}
	return nil
}

func (w *Worker) notifySlack(ctx context.Context, event entity.AttendanceEvent) error {
	return slack.PostWebhookCustomHTTPContext(ctx, w.SlackWebhookURL, w.Client, &slack.WebhookMessage{
		Text: SlackText(event),
	})
}

// SlackText короткое сообщение о событии для канала руководителей.
func SlackText(e entity.AttendanceEvent) string {
	name := e.UserName
	if name == "" {
		name = e.UserID
	}
	switch e.Event {
	case "attendance.time_out":
		text := fmt.Sprintf(":wave: %s timed out at %s", name, e.OccurredAt)
		if e.ShiftDurationMs != nil {
			text += " (" + attendance.FormatDuration(*e.ShiftDurationMs) + ")"
		}
		return text
	default:
		return fmt.Sprintf(":white_check_mark: %s timed in at %s", name, e.OccurredAt)
	}
}
