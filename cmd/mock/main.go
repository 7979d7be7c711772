package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/env"
)

// Event событие посещаемости, полученное мок-сервером.
type Event struct {
	Body       entity.AttendanceEvent `json:"body"`
	ReceivedAt string                 `json:"received_at"`
}

var (
	events   []Event
	requests int
	mu       sync.Mutex
)

func main() {
	port := env.GetString("PORT", "9090")
	// Каждый N-й POST отвечает 502, чтобы проверить повторы воркера. 0 отключает.
	failEvery := env.GetInt("MOCK_FAIL_EVERY", 0)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// POST: Принимаем вебхук
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				log.Printf("Error reading body: %v", err)
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}
			defer r.Body.Close()

			mu.Lock()
			requests++
			n := requests
			mu.Unlock()
			if failEvery > 0 && n%failEvery == 0 {
				log.Printf("Simulating failure for request %d", n)
				http.Error(w, "Bad Gateway", http.StatusBadGateway)
				return
			}

			var event entity.AttendanceEvent
			if err := json.Unmarshal(body, &event); err != nil || event.Event == "" {
				log.Printf("Invalid attendance event: %s", string(body))
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}
			log.Printf("Received %s for %s (record %s)", event.Event, event.UserID, event.RecordID)

			mu.Lock()
			events = append(events, Event{
				Body:       event,
				ReceivedAt: time.Now().Format(time.RFC3339),
			})
			mu.Unlock()

			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "OK")
			return
		}

		// GET: Отдаем список полученных событий
		if r.Method == http.MethodGet {
			mu.Lock()
			defer mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(events); err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	log.Printf("Mock webhook receiver listening on :%s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
