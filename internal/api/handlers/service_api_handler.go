package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/email"
)

// JsonApiRequest is the body of a service API call.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse is the body of a service API reply.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type serviceMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, int, error)

// ServiceApiHandler serves the internal operations port. It is never exposed publicly.
type ServiceApiHandler struct {
	rdb          *redis.Client
	shutdownChan chan<- struct{}
	logger       *zap.Logger
	pollInterval time.Duration
	pollAttempts int
	methods      map[string]serviceMethodFunc
}

// NewServiceApiHandler creates the handler. rdb may be nil when mock services are off,
// in which case getTestEmail always fails.
func NewServiceApiHandler(rdb *redis.Client, shutdownChan chan<- struct{}, logger *zap.Logger) *ServiceApiHandler {
	h := &ServiceApiHandler{
		rdb:          rdb,
		shutdownChan: shutdownChan,
		logger:       logger,
		pollInterval: 200 * time.Millisecond,
		pollAttempts: 10,
	}
	h.methods = map[string]serviceMethodFunc{
		"shutdown":     h.shutdown,
		"getTestEmail": h.getTestEmail,
	}
	return h
}

// HandleRequest handles POST /api on the service port.
func (h *ServiceApiHandler) HandleRequest(c *gin.Context) {
	var req JsonApiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, JsonApiResponse{Error: "Invalid request format"})
		return
	}
	method, ok := h.methods[req.Method]
	if !ok {
		c.JSON(http.StatusNotFound, JsonApiResponse{Error: "Unknown service method: " + req.Method})
		return
	}
	data, status, err := method(c, req.Arguments)
	if err != nil {
		_ = c.Error(err)
		c.JSON(status, JsonApiResponse{Error: err.Error()})
		return
	}
	c.JSON(status, JsonApiResponse{Success: true, Data: data})
}

func (h *ServiceApiHandler) shutdown(c *gin.Context, _ json.RawMessage) (interface{}, int, error) {
	h.logger.Info("shutdown requested via service API")
	select {
	case h.shutdownChan <- struct{}{}:
	default:
		h.logger.Info("shutdown already signaled")
	}
	return "Shutdown initiated", http.StatusOK, nil
}

// getTestEmail takes ["kind", "address"] and returns the last mock email of that kind,
// deleting it. It polls briefly since emails are sent by background workers.
func (h *ServiceApiHandler) getTestEmail(c *gin.Context, args json.RawMessage) (interface{}, int, error) {
	var parsed []string
	if err := json.Unmarshal(args, &parsed); err != nil || len(parsed) != 2 {
		return nil, http.StatusBadRequest, errors.New("Invalid arguments: expected JSON array [kind, email]")
	}
	if h.rdb == nil {
		return nil, http.StatusServiceUnavailable, errors.New("Mock email store is not available")
	}
	key := email.MockEmailKey(parsed[1], parsed[0])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	for i := 0; i < h.pollAttempts; i++ {
		raw, err := h.rdb.GetDel(ctx, key).Result()
		if err == nil {
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				h.logger.Error("stored test email is not valid JSON", zap.String("key", key), zap.Error(err))
				return nil, http.StatusInternalServerError, errors.New("Failed to parse stored email data")
			}
			return data, http.StatusOK, nil
		}
		if !errors.Is(err, redis.Nil) {
			h.logger.Error("failed to read test email", zap.String("key", key), zap.Error(err))
			return nil, http.StatusInternalServerError, errors.New("Redis error")
		}
		select {
		case <-ctx.Done():
			return nil, http.StatusNotFound, errors.New("Test email not found for key " + key)
		case <-time.After(h.pollInterval):
		}
	}
	return nil, http.StatusNotFound, errors.New("Test email not found for key " + key)
}
