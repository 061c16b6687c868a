package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nearboard/nearboard/internal/board"
	"github.com/nearboard/nearboard/internal/scan"
	"github.com/nearboard/nearboard/internal/universe"
)

const defaultUniverseLimit = 100

// Handlers serves the board query surface. All handlers are read paths
// except Scan, which triggers one serialized scan pass.
type Handlers struct {
	board    *board.Cache
	scanner  *scan.Scanner
	universe *universe.Builder
	now      func() time.Time
}

// NewHandlers wires the handlers to the board cache, scanner, and
// universe builder.
func NewHandlers(b *board.Cache, s *scan.Scanner, u *universe.Builder) *Handlers {
	return &Handlers{board: b, scanner: s, universe: u, now: time.Now}
}

// WithClock swaps the time source, used by tests.
func (h *Handlers) WithClock(now func() time.Time) *Handlers {
	h.now = now
	return h
}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		RequestID: requestID(r.Context()),
		Timestamp: h.now().UTC(),
	})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"ts":     h.now().Unix(),
	})
}

type boardResponse struct {
	Rows       []board.Row `json:"rows"`
	Count      int         `json:"count"`
	AsOf       *time.Time  `json:"as_of,omitempty"`
	AgeMinutes *float64    `json:"age_minutes,omitempty"`
	Stale      bool        `json:"stale"`
}

// Board returns the most recent committed board. An empty board is a
// valid response with its staleness flag, never an error.
func (h *Handlers) Board(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Snapshot(h.now())
	h.writeJSON(w, http.StatusOK, boardResponse{
		Rows:       snap.Rows,
		Count:      len(snap.Rows),
		AsOf:       snap.AsOf,
		AgeMinutes: snap.AgeMinutes,
		Stale:      snap.Stale,
	})
}

// Scan triggers one scan pass. An optional symbols query parameter
// (comma-separated) overrides the universe for this pass. A scan already
// in flight answers 409.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var override []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		override = strings.Split(raw, ",")
	}

	summary, err := h.scanner.Run(r.Context(), override)
	if err != nil {
		if errors.Is(err, scan.ErrScanInFlight) {
			h.writeError(w, r, http.StatusConflict, "a scan is already running")
			return
		}
		h.writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

type universeResponse struct {
	Symbols []string  `json:"symbols"`
	Count   int       `json:"count"`
	Source  string    `json:"source"`
	AsOf    time.Time `json:"as_of"`
}

// Universe returns the current universe, building one when none exists or
// force=true. A malformed limit falls back to the default rather than
// erroring.
func (h *Handlers) Universe(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	limit := defaultUniverseLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	u, err := h.universe.Build(r.Context(), force)
	if err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}

	symbols := u.Symbols
	total := len(symbols)
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}

	h.writeJSON(w, http.StatusOK, universeResponse{
		Symbols: symbols,
		Count:   total,
		Source:  string(u.Source),
		AsOf:    u.BuiltAt,
	})
}

// NotFound answers unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "the requested endpoint does not exist")
}
