package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/co-track/internal/metrics"
	"github.com/yegors/co-track/pkg/logger"
)

// Router builds the HTTP routes
type Router struct {
	handler        *Handler
	stream         http.Handler
	static         http.Handler
	allowedOrigins []string
	logger         *logger.Logger
}

// NewRouter creates a router. stream and static may be nil.
func NewRouter(handler *Handler, stream http.Handler, static http.Handler, allowedOrigins []string, log *logger.Logger) *Router {
	return &Router{
		handler:        handler,
		stream:         stream,
		static:         static,
		allowedOrigins: allowedOrigins,
		logger:         log.Named("api-router"),
	}
}

// Routes returns the root handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	h := rt.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/fields", h.GetFields)
		r.Get("/lookup", h.Lookup)

		r.Route("/aircraft", func(r chi.Router) {
			r.Get("/", h.GetAllAircraft)
			r.Get("/icao/{icao}", h.GetAircraftByIcao)
			r.Get("/{id}", h.GetAircraft)
			r.Get("/{id}/history", h.GetAircraftHistory)
			r.Get("/{id}/archive", h.GetAircraftArchive)
		})

		r.Route("/simulation/aircraft", func(r chi.Router) {
			r.Get("/", h.GetSimulatedAircraft)
			r.Post("/", h.CreateSimulatedAircraft)
			r.Put("/{icao}", h.UpdateSimulationControls)
			r.Delete("/{icao}", h.RemoveSimulatedAircraft)
		})
	})

	if rt.stream != nil {
		r.Handle("/ws", rt.stream)
	}
	r.Handle("/metrics", promhttp.Handler())

	if rt.static != nil {
		r.Handle("/*", rt.static)
	}
	return r
}

// requestLogger logs each request and records its metrics. Stream
// connections are logged when they end.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		rt.logger.Debug("Request served",
			logger.String("method", r.Method),
			logger.String("route", route),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("elapsed", elapsed),
			logger.String("remote", r.RemoteAddr),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// cors allows browser access from the configured origins. "*" allows any.
func (rt *Router) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := rt.allowOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if allowed != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) allowOrigin(origin string) string {
	for _, allowed := range rt.allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
