package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pluginrelay/app/usecase"
	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/metrics"
)

const (
	maxBodyBytes = 1 << 20

	headerGenerationID     = "X-Generation-Id"
	headerGenerationStatus = "X-Generation-Status"
)

type RelayHandler struct {
	generator usecase.PluginGenerator
	history   usecase.HistoryUseCase
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

func NewRelayHandler(
	generator usecase.PluginGenerator,
	history usecase.HistoryUseCase,
	logger *slog.Logger,
) *RelayHandler {
	return &RelayHandler{
		generator: generator,
		history:   history,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *RelayHandler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		metrics.ObserveHTTPRequest(r.Method, route, rw.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (h *RelayHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/generate", h.withMetrics(h.handleGenerate)).Methods(http.MethodPost)
	api.HandleFunc("/generate/ws", h.withMetrics(h.handleGenerateWS)).Methods(http.MethodGet)
	api.HandleFunc("/generations", h.withMetrics(h.handleListGenerations)).Methods(http.MethodGet)
	api.HandleFunc("/generations/{id}", h.withMetrics(h.handleGetGeneration)).Methods(http.MethodGet)
	api.HandleFunc("/generations/{id}", h.withMetrics(h.handleDeleteGeneration)).Methods(http.MethodDelete)
	api.HandleFunc("/generations/{id}/download", h.withMetrics(h.handleDownload)).Methods(http.MethodGet)
	api.HandleFunc("/suggestions", h.withMetrics(h.handleSuggestions)).Methods(http.MethodGet)
	api.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeHistoryError maps history failures: a disabled journal and an unknown id
// are both 404.
func (h *RelayHandler) writeHistoryError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, usecase.ErrHistoryDisabled) || errors.Is(err, repository.ErrGenerationNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	h.logger.Error(op+" failed", "err", err)
	metrics.IncError("transport", op)
	writeError(w, http.StatusInternalServerError, err)
}

// POST /api/generate
func (h *RelayHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req entity.GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("bad generate request body", "err", err)
		metrics.IncError("transport", "decode_body")
		writeJSON(w, http.StatusBadRequest, entity.GenerateResponse{Code: entity.FallbackCode})
		return
	}

	gen := h.generator.Generate(r.Context(), req.Prompt)

	w.Header().Set(headerGenerationID, gen.ID)
	w.Header().Set(headerGenerationStatus, string(gen.Status))

	status := http.StatusOK
	if !gen.IsOK() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, entity.GenerateResponse{Code: gen.Code})
}

// GET /api/generate/ws
func (h *RelayHandler) handleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		metrics.IncError("transport", "ws_upgrade")
		return
	}
	defer conn.Close()

	metrics.IncWSConnections()
	defer metrics.DecWSConnections()

	conn.SetReadLimit(maxBodyBytes)
	ctx := r.Context()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "err", err)
			}
			return
		}

		var req entity.GenerateRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			metrics.IncError("transport", "ws_decode")
			if err := conn.WriteJSON(entity.StreamResponse{Code: entity.FallbackCode}); err != nil {
				return
			}
			continue
		}

		gen := h.generator.Generate(ctx, req.Prompt)
		resp := entity.StreamResponse{ID: gen.ID, Code: gen.Code, OK: gen.IsOK()}
		if err := conn.WriteJSON(resp); err != nil {
			h.logger.Warn("websocket write failed", "generation_id", gen.ID, "err", err)
			return
		}
	}
}

// GET /api/generations?limit=N
func (h *RelayHandler) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	list, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.writeHistoryError(w, "list_generations", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/generations/{id}
func (h *RelayHandler) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := h.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeHistoryError(w, "get_generation", err)
		return
	}
	writeJSON(w, http.StatusOK, gen)
}

// GET /api/generations/{id}/download
func (h *RelayHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	gen, err := h.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeHistoryError(w, "download_generation", err)
		return
	}
	w.Header().Set("Content-Type", "text/x-php; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entity.PluginFileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(gen.Code))
}

// DELETE /api/generations/{id}
func (h *RelayHandler) handleDeleteGeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeHistoryError(w, "delete_generation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/suggestions
func (h *RelayHandler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": entity.Suggestions})
}

// GET /api/health
func (h *RelayHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok":       true,
		"ts":       time.Now().UTC(),
		"provider": h.generator.Provider(),
		"model":    h.generator.Model(),
		"history":  h.history.Enabled(),
	}
	writeJSON(w, http.StatusOK, status)
}
