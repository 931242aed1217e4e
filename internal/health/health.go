// Package health собирает проверки зависимостей сервиса и отдаёт их как
// HTTP-пробы /healthz, /readyz и /livez.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 2 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity упорядочивает статусы для свёртки в общий.
func (s Status) severity() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — тело /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

type Checker interface {
	Check(ctx context.Context) Check
}

// Handler хранит зарегистрированные проверки. Проверки выполняются параллельно,
// каждая со своим таймаутом.
type Handler struct {
	version      string
	started      time.Time
	checkTimeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
}

func NewHandler(version string) *Handler {
	return &Handler{
		version:      version,
		started:      time.Now(),
		checkTimeout: defaultCheckTimeout,
		checkers:     make(map[string]Checker),
	}
}

// RegisterChecker добавляет или заменяет проверку с именем name.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	h.checkers[name] = checker
	h.mu.Unlock()
}

// Snapshot выполняет все проверки и сворачивает их в худший статус.
func (h *Handler) Snapshot(ctx context.Context) Response {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	checkers := make([]Checker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = h.checkers[name]
	}
	h.mu.RUnlock()

	results := make([]Check, len(checkers))
	var g errgroup.Group
	for i, checker := range checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
			defer cancel()
			results[i] = checker.Check(checkCtx)
			return nil
		})
	}
	_ = g.Wait()

	resp := Response{
		Status:        StatusHealthy,
		Timestamp:     time.Now(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if len(results) > 0 {
		resp.Checks = make(map[string]Check, len(results))
	}
	for i, check := range results {
		resp.Checks[names[i]] = check
		if check.Status.severity() > resp.Status.severity() {
			resp.Status = check.Status
		}
	}
	return resp
}

// ServeHTTP отдаёт Snapshot как JSON; unhealthy даёт 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h.Snapshot(r.Context())
	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// ReadinessHandler снимает готовность только при unhealthy:
// недоступный SMSC или Redis сервис не выключают.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	code, body := http.StatusOK, "ready"
	if h.Snapshot(r.Context()).Status == StatusUnhealthy {
		code, body = http.StatusServiceUnavailable, "not ready"
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Probe — Checker поверх функции. Ошибка критичной проверки даёт unhealthy,
// некритичной — degraded.
type Probe struct {
	name     string
	fn       func(ctx context.Context) error
	critical bool
}

// Critical — проверка зависимости, без которой сервис не работает.
func Critical(name string, fn func(ctx context.Context) error) *Probe {
	return &Probe{name: name, fn: fn, critical: true}
}

// Optional — проверка зависимости, без которой сервис работает с ограничениями.
func Optional(name string, fn func(ctx context.Context) error) *Probe {
	return &Probe{name: name, fn: fn}
}

func (p *Probe) Check(ctx context.Context) Check {
	start := time.Now()
	err := p.fn(ctx)
	check := Check{Name: p.name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Message = err.Error()
		check.Status = StatusDegraded
		if p.critical {
			check.Status = StatusUnhealthy
		}
	}
	return check
}
