package host

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jonwraymond/offlinecache/network"
	"github.com/jonwraymond/offlinecache/observe"
)

// ServeHTTP answers r through the worker's fetch handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.started.Load() {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "offline cache is starting", http.StatusServiceUnavailable)
		return
	}

	req, err := network.FromHTTP(r)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, network.ErrBodyTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), code)
		return
	}

	resp, result, err := h.worker.Fetch(ctx, req)
	if err != nil {
		code := fetchErrorStatus(err)
		h.logger.Warn(ctx, "fetch failed",
			observe.Field{Key: "url", Value: req.URL},
			observe.Field{Key: "status", Value: code},
			observe.Field{Key: "error", Value: err.Error()})
		w.Header().Set(HeaderCache, string(result))
		http.Error(w, http.StatusText(code), code)
		return
	}

	header := w.Header()
	for k, vs := range resp.Header {
		header[k] = append([]string(nil), vs...)
	}
	header.Set(HeaderCache, string(result))
	// A HEAD answer carries no body; keep the length the response declares.
	if r.Method != http.MethodHead || (header.Get("Content-Length") == "" && len(resp.Body) > 0) {
		header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

func fetchErrorStatus(err error) int {
	switch {
	case errors.Is(err, network.ErrCircuitOpen), errors.Is(err, network.ErrBulkheadFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, network.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
