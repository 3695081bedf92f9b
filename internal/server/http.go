package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
	"github.com/castwatch/castwatch/internal/version"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	State   string       `json:"state"`
	Devices int          `json:"devices"`
	Build   version.Info `json:"build"`
}

type deviceStatusResponse struct {
	Device monitor.Device `json:"device"`
	Status monitor.Status `json:"status"`
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	r.Get("/", s.handleDevices)
	r.Get("/devices", s.handleDevices)
	r.Get("/status", s.handleStatuses)
	r.Get("/status/{name}", s.handleDeviceStatus)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	return r
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.mon.CurrentDevices()
	if devices == nil {
		devices = []monitor.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleStatuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Statuses())
}

func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	for _, device := range s.mon.CurrentDevices() {
		if device.Name == name {
			writeJSON(w, http.StatusOK, deviceStatusResponse{
				Device: device,
				Status: s.mon.Statuses()[name],
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown device: "+name)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.mon.State()
	status := http.StatusOK
	if state != monitor.StateRunning {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		State:   state.String(),
		Devices: len(s.mon.CurrentDevices()),
		Build:   version.Get(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: status, Message: message})
}

// loggingMiddleware logs each request with its status and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}

// recoveryMiddleware turns a handler panic into a 500.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.Error("Panic recovered in HTTP handler",
					zap.Any("error", err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the status code. It forwards Hijack so WebSocket
// upgrades pass through the middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
