package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/generators"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/storage"
)

const serviceName = "storyteller-companion"

// RouterDeps are the components the HTTP surface is built from.
type RouterDeps struct {
	Config     *config.Config
	Pages      *Pages
	Hub        *PageHub
	Summarizer Summarizer
	// Media answers readiness checks for generated files.
	Media MediaStatusChecker
	// Queue and Cache are optional and only reported by the health check.
	Queue *generators.Queue
	Cache interfaces.RefCache
	// Redis is optional and only reported by the health check.
	Redis    *storage.RedisStore
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// MediaStatusChecker asks the backend whether a generated file is ready.
type MediaStatusChecker interface {
	Status(ctx context.Context, kind interfaces.MediaKind, id string) (*interfaces.MediaStatus, error)
}

// cacheStatsReporter is implemented by caches that keep hit statistics.
type cacheStatsReporter interface {
	Stats() generators.CacheStats
}

type Handlers struct {
	config     *config.Config
	pages      *Pages
	hub        *PageHub
	summarizer Summarizer
	media      MediaStatusChecker
	queue      *generators.Queue
	cache      interfaces.RefCache
	redisStore *storage.RedisStore
	upgrader   websocket.Upgrader
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewHandlers(deps RouterDeps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origin := deps.Config.Server.AllowOrigin
	return &Handlers{
		config:     deps.Config,
		pages:      deps.Pages,
		hub:        deps.Hub,
		summarizer: deps.Summarizer,
		media:      deps.Media,
		queue:      deps.Queue,
		cache:      deps.Cache,
		redisStore: deps.Redis,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return origin == "" || origin == "*" || r.Header.Get("Origin") == origin
			},
		},
		validate: validator.New(),
		logger:   logger.Named("web"),
	}
}

// NewRouter builds the companion's HTTP surface.
func NewRouter(deps RouterDeps) *chi.Mux {
	h := NewHandlers(deps)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(deps.Config.Server.AllowOrigin))

	r.Get("/health", h.HealthCheck)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Legacy meeting summarizer
	if h.summarizer != nil {
		r.Post("/summarize", h.Summarize)
		r.Post("/send-email", h.SendEmail)
	}

	r.Route("/api/v1/pages", func(r chi.Router) {
		r.Post("/", h.CreatePage)
		r.Route("/{page_id}", func(r chi.Router) {
			r.Get("/", h.GetPage)
			r.Delete("/", h.DeletePage)

			r.Post("/input/text", h.SetText)
			r.Post("/input/file", h.SetFile)
			r.Post("/input/recording", h.SetRecording)
			r.Delete("/input", h.ClearInput)

			r.Post("/submit", h.Submit)
			r.Post("/choose", h.Choose)
			r.Post("/restart", h.Restart)
			r.Get("/history", h.History)
			r.Get("/session", h.Session)

			r.Post("/player", h.Player)
			r.Get("/audio/local", h.LocalAudio)
			r.Post("/image", h.Image)

			r.Get("/ws", h.Stream)
		})
	})

	if h.media != nil {
		r.Get("/api/v1/media/{media_type}/{media_id}/status", h.MediaStatus)
	}

	return r
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"service": serviceName,
		"pages":   h.pages.Len(),
	}
	if h.hub != nil {
		resp["clients"] = h.hub.ClientCount("")
	}
	if h.queue != nil {
		resp["queue"] = map[string]int{
			"depth":   h.queue.Size(),
			"workers": h.queue.Workers(),
		}
	}
	if stats, ok := h.cache.(cacheStatsReporter); ok {
		resp["cache"] = stats.Stats()
	}
	if h.redisStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.redisStore.Ping(ctx); err != nil {
			h.logger.Warn("redis health check failed", zap.Error(err))
			resp["status"] = "degraded"
			resp["redis"] = "unavailable"
		} else {
			resp["redis"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// corsMiddleware answers preflight requests and allows origin.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.Header().Set("Access-Control-Max-Age", "300")
			if origin != "*" {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
