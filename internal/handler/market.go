package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"bazaar-api/internal/engine"
	"bazaar-api/internal/middleware"
	"bazaar-api/internal/service"
	"bazaar-api/pkg/apierror"
	"bazaar-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes bounds a request body. Item definitions are the largest payload.
const maxBodyBytes = 1 << 20

// MarketHandler handles shop, listing and trade requests.
type MarketHandler struct {
	engine  *engine.Engine
	catalog *service.Catalog
	logger  *zap.Logger

	// mu serializes every mutating engine call.
	mu sync.Mutex
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(e *engine.Engine, catalog *service.Catalog, logger *zap.Logger) *MarketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketHandler{
		engine:  e,
		catalog: catalog,
		logger:  logger.Named("market"),
	}
}

// write runs fn under the writer lock and drops cached catalog views afterwards.
// A failed trade may already have moved stock, so views are dropped either way.
func (h *MarketHandler) write(fn func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := fn()
	if h.catalog != nil {
		h.catalog.Invalidate()
	}
	return err
}

// fail writes err, logging anything that maps to a 500.
func (h *MarketHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	response.Error(w, apiErr)
}

// actingAs returns the caller, rejecting requests that carry no identity.
func actingAs(r *http.Request) (engine.Actor, error) {
	actor, _ := middleware.ActorFromContext(r.Context())
	if actor.ID == "" {
		return actor, apierror.BadRequest("X-Actor-ID is required")
	}
	return actor, nil
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest(name + " must be a positive integer")
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required")
		}
		return apierror.BadRequest("invalid JSON")
	}
	return nil
}
