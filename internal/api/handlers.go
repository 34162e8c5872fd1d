package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/report"
	"github.com/naka-gawa/github-audience/internal/scheduler"
	"github.com/naka-gawa/github-audience/internal/usecase"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Schedule  *ScheduleInfo     `json:"schedule,omitempty"`
}

// ScheduleInfo describes the last scheduled run.
type ScheduleInfo struct {
	Runs      int    `json:"runs"`
	LastRun   string `json:"lastRun,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// StatusReporter is implemented by the scheduler.
type StatusReporter interface {
	Status() scheduler.Status
}

// NewHealthHandler creates a health handler. Nil checkers are skipped.
// A failed scheduled run is reported but does not degrade the status.
func NewHealthHandler(dbHealthChecker interface{ Health(context.Context) error }, sched StatusReporter, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]string)
		status := "ok"

		if dbHealthChecker != nil {
			if err := dbHealthChecker.Health(r.Context()); err != nil {
				logger.Printf("Database health check failed: %v", err)
				services["database"] = "unhealthy"
				status = "degraded"
			} else {
				services["database"] = "healthy"
			}
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services:  services,
		}
		if sched != nil {
			st := sched.Status()
			info := &ScheduleInfo{Runs: st.Runs}
			if !st.LastRun.IsZero() {
				info.LastRun = st.LastRun.UTC().Format(time.RFC3339)
			}
			if st.LastErr != nil {
				info.LastError = st.LastErr.Error()
			}
			response.Schedule = info
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		respondJSON(w, code, response)
	}
}

// ReportHandler runs the pipeline on demand.
type ReportHandler struct {
	runner      Runner
	defaultDays int
	logger      *log.Logger
	locks       *keyedMutex
}

func NewReportHandler(runner Runner, defaultDays int, logger *log.Logger) *ReportHandler {
	return &ReportHandler{
		runner:      runner,
		defaultDays: defaultDays,
		logger:      logger,
		locks:       newKeyedMutex(),
	}
}

// Get handles GET /api/report?owner=&repo=&days=&format=
// repo may also carry both parts as "owner/repo".
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	repo, err := domain.ResolveRepoRef(q.Get("owner"), q.Get("repo"))
	if err != nil {
		respondError(w, err)
		return
	}
	days := h.defaultDays
	if s := q.Get("days"); s != "" {
		days, err = strconv.Atoi(s)
		if err != nil || days < 0 {
			respondError(w, fmt.Errorf("%w: days must be a non-negative integer, got %q", domain.ErrInvalidInput, s))
			return
		}
	}
	format, err := report.ParseFormat(q.Get("format"))
	if err != nil {
		respondError(w, err)
		return
	}

	// Runs for the same repository are serialised. A client that goes away
	// while queued never starts a run.
	unlock, err := h.locks.Lock(r.Context(), strings.ToLower(repo.String()))
	if err != nil {
		h.logger.Printf("Report for %s abandoned while waiting: %v", repo, err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rep, err := h.runner.Run(r.Context(), usecase.RunRequest{Repo: repo, Days: days})
	unlock()
	if err != nil {
		h.logger.Printf("Report for %s failed: %v", repo, err)
		respondError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, format, rep); err != nil {
		respondError(w, fmt.Errorf("failed to render report: %w", err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// statusFor maps the domain error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrRepositoryNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// keyedMutex hands out one lock per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is held while its channel is full.
type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done, and returns the unlock function.
func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}
	// Both may be ready; a cancelled request still gives the lock back.
	if err := ctx.Err(); err != nil {
		<-l.ch
		k.release(key, l)
		return nil, err
	}
	return func() {
		<-l.ch
		k.release(key, l)
	}, nil
}

func (k *keyedMutex) release(key string, l *keyLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
