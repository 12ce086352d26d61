// Package api is the local reference queue service's HTTP surface: enqueue,
// receive (claim), and ack, plus a healthz probe.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glennschmidt/fcgiq/internal/localqueue"
	"github.com/glennschmidt/fcgiq/internal/localqueue/metrics"
	"github.com/glennschmidt/fcgiq/internal/localqueue/store"
)

type Server struct {
	store    store.Store
	addr     string
	timeout  time.Duration
	notifier *queueNotifier
}

// maxWait caps how long a single receive request may long-poll the server,
// regardless of the wait_ms the caller requests.
const maxWait = 60 * time.Second

func NewServer(addr string, s store.Store) *http.Server {
	srv := &Server{store: s, addr: addr, timeout: 5 * time.Second, notifier: newQueueNotifier()}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.Timeout(srv.timeout)).Post("/queues/{queue}/messages", srv.handleEnqueue)
		// receive long-polls up to wait_ms (capped at maxWait), so it gets a
		// longer request-scoped deadline than the other, fast endpoints.
		r.With(middleware.Timeout(maxWait + 5*time.Second)).Post("/queues/{queue}:receive", srv.handleReceive)
		r.With(middleware.Timeout(srv.timeout)).Post("/messages/{id}:ack", srv.handleAck)
	})

	return &http.Server{Addr: srv.addr, Handler: r}
}

type enqueueRequest struct {
	Body       json.RawMessage   `json:"body"`
	DelayMs    int               `json:"delay_ms"`
	MaxRetries int               `json:"max_retries"`
	DLQ        string            `json:"dlq"`
	TraceID    string            `json:"trace_id"`
	Attributes map[string]string `json:"attributes"`
}

type enqueueResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")

	var req enqueueRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m := localqueue.Message{
		Queue:      queue,
		Body:       []byte(req.Body),
		Attributes: req.Attributes,
		MaxRetries: req.MaxRetries,
	}
	if req.DLQ != "" {
		m.DLQ = &req.DLQ
	}
	if req.TraceID != "" {
		m.TraceID = &req.TraceID
	}

	id, err := s.store.Enqueue(r.Context(), m, time.Duration(req.DelayMs)*time.Millisecond)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	metrics.MessagesEnqueued.WithLabelValues(queue).Inc()
	// Wake any receive long-poll already waiting on this queue. Delayed
	// messages (not_before in the future) won't actually be claimable yet,
	// but the woken waiter just re-claims empty and keeps waiting out its
	// budget, same as a spurious wakeup.
	s.notifier.broadcast(queue)
	writeJSON(w, http.StatusCreated, enqueueResponse{ID: id})
}

type receiveRequest struct {
	Max          int `json:"max"`
	VisibilityMs int `json:"visibility_ms"`
	WaitMs       int `json:"wait_ms"`
}

type receivedMessage struct {
	ID            string            `json:"id"`
	Body          json.RawMessage   `json:"body"`
	ReceiptHandle string            `json:"receipt_handle"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	DeliveryCount int               `json:"delivery_count"`
	MaxRetries    int               `json:"max_retries"`
}

// claimWithLongPoll claims up to limit messages, and if none are available
// yet, waits up to wait for one to be enqueued (woken via s.notifier)
// before giving up and returning an empty result, per spec.md §4.2's
// server-side long poll.
func (s *Server) claimWithLongPoll(ctx context.Context, queue string, limit int, visibility, wait time.Duration) ([]localqueue.Message, error) {
	deadline := time.Now().Add(wait)
	for {
		messages, err := s.store.Claim(ctx, localqueue.ClaimOptions{
			Queue:      queue,
			Limit:      limit,
			Visibility: visibility,
		})
		if err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			return messages, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-s.notifier.wait(queue):
			// Woken by an enqueue; loop and re-claim.
		case <-time.After(remaining):
			return nil, nil
		}
	}
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")

	var req receiveRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Max <= 0 {
		req.Max = 1
	}
	if req.VisibilityMs <= 0 {
		req.VisibilityMs = 30_000
	}
	wait := time.Duration(req.WaitMs) * time.Millisecond
	if wait > maxWait {
		wait = maxWait
	}

	messages, err := s.claimWithLongPoll(r.Context(), queue, req.Max, time.Duration(req.VisibilityMs)*time.Millisecond, wait)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "receive failed")
		return
	}

	out := make([]receivedMessage, 0, len(messages))
	for _, m := range messages {
		var receipt string
		if m.ReceiptHandle != nil {
			receipt = *m.ReceiptHandle
		}
		out = append(out, receivedMessage{
			ID:            m.ID,
			Body:          json.RawMessage(m.Body),
			ReceiptHandle: receipt,
			Attributes:    m.Attributes,
			DeliveryCount: m.DeliveryCount,
			MaxRetries:    m.MaxRetries,
		})
	}

	if len(out) > 0 {
		metrics.MessagesReceived.WithLabelValues(queue).Add(float64(len(out)))
	}
	writeJSON(w, http.StatusOK, out)
}

type ackRequest struct {
	ReceiptHandle string `json:"receipt_handle"`
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ackRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReceiptHandle == "" {
		httpError(w, http.StatusBadRequest, "receipt_handle is required")
		return
	}

	ok, err := s.store.Ack(r.Context(), id, req.ReceiptHandle)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "ack failed")
		return
	}
	if !ok {
		httpError(w, http.StatusNotFound, "message not found or receipt handle expired")
		return
	}

	metrics.MessagesAcked.Inc()
	w.WriteHeader(http.StatusOK)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(v)
}
