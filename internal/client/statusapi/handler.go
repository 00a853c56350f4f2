// Package statusapi serves the local HTTP endpoints a host UI uses to show
// sync state and to feed connectivity signals into the engine.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultHistoryLimit applies when /history has no limit parameter.
const DefaultHistoryLimit = 20

type Syncer interface {
	Status(ctx context.Context) (clientmodels.SyncStatus, error)
	History(ctx context.Context, limit int) ([]clientmodels.SyncLogEntry, error)
	TriggerSync() bool
	ClearAllLocalData(ctx context.Context) error
}

type Connectivity interface {
	SetOnline(online bool)
}

type Handler struct {
	syncer       Syncer
	connectivity Connectivity
	logger       logging.Logger
}

func NewHandler(s Syncer, c Connectivity, logger logging.Logger) *Handler {
	return &Handler{syncer: s, connectivity: c, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/status", h.GetStatus)
	r.Get("/history", h.GetHistory)
	r.Post("/sync", h.TriggerSync)
	r.Post("/connectivity", h.SetConnectivity)
	r.Delete("/local-data", h.ClearLocalData)
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug(r.Context(), "status api request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(), "took", time.Since(start))
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.syncer.Status(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "status failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.syncer.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []clientmodels.SyncLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.syncer.TriggerSync() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already running"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		writeError(w, http.StatusBadRequest, `body must be {"online": true|false}`)
		return
	}
	h.connectivity.SetOnline(*req.Online)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearLocalData(w http.ResponseWriter, r *http.Request) {
	if err := h.syncer.ClearAllLocalData(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "status api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
