package host

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/offlinecache/auth"
	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/health"
	"github.com/jonwraymond/offlinecache/observe"
)

// CachesResponse is the body of GET /_offline/caches.
type CachesResponse struct {
	Current string                  `json:"current"`
	Caches  []cachestore.CacheStats `json:"caches"`
}

// ActivateResponse is the body of POST /_offline/activate.
type ActivateResponse struct {
	Deleted []string `json:"deleted"`
	Error   string   `json:"error,omitempty"`
}

// Handler returns the full HTTP surface: probes, /metrics, admin routes,
// and the fetch handler for everything else.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, h.health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	authn := auth.Middleware(h.authn, h.logger)
	admin := auth.RequireRole(auth.RoleAdmin)
	mux.Handle("GET /_offline/caches", authn(http.HandlerFunc(h.handleCaches)))
	mux.Handle("POST /_offline/install", authn(admin(http.HandlerFunc(h.handleInstall))))
	mux.Handle("POST /_offline/activate", authn(admin(http.HandlerFunc(h.handleActivate))))

	mux.Handle("/", h)
	return mux
}

func (h *Host) handleCaches(w http.ResponseWriter, r *http.Request) {
	stats, err := cachestore.Stats(r.Context(), h.storage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, CachesResponse{Current: h.worker.CacheName(), Caches: stats})
}

func (h *Host) handleInstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.Info(ctx, "install requested", observe.Field{Key: "principal", Value: auth.PrincipalFromContext(ctx)})
	if err := h.Install(ctx); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"installed": h.worker.CacheName()})
}

func (h *Host) handleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.Info(ctx, "activate requested", observe.Field{Key: "principal", Value: auth.PrincipalFromContext(ctx)})
	deleted, err := h.Activate(ctx)
	resp := ActivateResponse{Deleted: deleted}
	if resp.Deleted == nil {
		resp.Deleted = []string{}
	}
	switch {
	case errors.Is(err, ErrNotStarted):
		writeJSON(w, http.StatusConflict, ActivateResponse{Deleted: []string{}, Error: err.Error()})
	case err != nil:
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
