// Package api exposes the sales assistant over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	salesx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/agents/sales"
	cachex "github.com/tanpawarit/Chative-Sales-Interceptor/agent/cache"
	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/telemetry"
	toolx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/tool"
)

const maxBodyBytes = 64 << 10

var apiJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Messenger answers customer messages.
type Messenger interface {
	HandleMessage(ctx context.Context, req salesx.Request) (salesx.Reply, error)
}

// Reporter exposes the process-wide counters.
type Reporter interface {
	Metrics() telemetry.Snapshot
	Cache() *cachex.Cache
}

// Pinger checks a backing service for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Inventory records business answers about unconfirmed products.
type Inventory interface {
	ResolveProduct(ctx context.Context, productID int64, decision string, price *float64) (contractx.Product, error)
}

type Option func(*Handler)

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithPinger(p Pinger) Option {
	return func(h *Handler) {
		h.pinger = p
	}
}

// WithInventory enables POST /v1/inventory/responses.
func WithInventory(inv Inventory) Option {
	return func(h *Handler) {
		h.inventory = inv
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.origins = append(h.origins, origins...)
	}
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	messenger Messenger
	reporter  Reporter
	pinger    Pinger
	inventory Inventory
	origins   []string
	logger    zerolog.Logger
}

func NewHandler(messenger Messenger, reporter Reporter, opts ...Option) *Handler {
	h := &Handler{
		messenger: messenger,
		reporter:  reporter,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)
	if len(h.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Get("/healthz", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", h.postMessage)
		r.Get("/metrics", h.getMetrics)
		if h.inventory != nil {
			r.Post("/inventory/responses", h.postInventoryResponse)
		}
	})
	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("api: health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req salesx.Request
	if err := apiJSON.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := h.messenger.HandleMessage(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, contractx.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, contractx.ErrUnknownBusiness):
			status = http.StatusNotFound
		default:
			h.logger.Error().
				Err(err).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("api: handle message failed")
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type inventoryResponse struct {
	ProductID int64    `json:"product_id"`
	Decision  string   `json:"decision"`
	Price     *float64 `json:"price"`
}

func (h *Handler) postInventoryResponse(w http.ResponseWriter, r *http.Request) {
	var req inventoryResponse
	if err := apiJSON.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	product, err := h.inventory.ResolveProduct(r.Context(), req.ProductID, req.Decision, req.Price)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, contractx.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, contractx.ErrUnknownProduct):
			status = http.StatusNotFound
		default:
			h.logger.Error().
				Err(err).
				Int64("product_id", req.ProductID).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("api: resolve product failed")
		}
		writeError(w, status, err.Error())
		return
	}

	// cached searches may still describe the product as unconfirmed
	purged := h.reporter.Cache().DeleteTool(toolx.SearchProduct)
	h.logger.Info().
		Int64("product_id", product.ID).
		Str("availability", product.Availability).
		Int("purged_searches", purged).
		Msg("api: product resolved")

	msg := fmt.Sprintf("Product '%s' (ID: %d) has been rejected.", product.Name, product.ID)
	if product.Availability == contractx.AvailabilityConfirmed && product.Price != nil {
		msg = fmt.Sprintf("Product '%s' (ID: %d) confirmed at price $%.2f.", product.Name, product.ID, *product.Price)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": msg})
}

type metricsResponse struct {
	Agent telemetry.Snapshot `json:"agent"`
	Cache cachex.Stats       `json:"cache"`
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		Agent: h.reporter.Metrics(),
		Cache: h.reporter.Cache().Stats(),
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("api: request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = apiJSON.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
