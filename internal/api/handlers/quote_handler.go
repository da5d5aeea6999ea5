package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/api/middleware"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/services"
)

// QuoteHandler handles quote listing and submission.
type QuoteHandler struct {
	quoteService services.IQuoteService
}

func NewQuoteHandler(quoteService services.IQuoteService) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService}
}

type submitQuoteRequest struct {
	JobID   string   `json:"job_id"`
	Amount  *float64 `json:"amount"`
	Comment string   `json:"comment"`
}

// ListQuotes handles GET /v1/quotes?job_id=&pro_id=
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	quotes, err := h.quoteService.ListQuotes(c.Request.Context(), models.QuoteFilter{
		JobID: c.Query("job_id"),
		ProID: c.Query("pro_id"),
	})
	if err != nil {
		respondError(c, err, "Failed to fetch quotes")
		return
	}
	c.JSON(http.StatusOK, quotes)
}

// SubmitQuote handles POST /v1/quotes
func (h *QuoteHandler) SubmitQuote(c *gin.Context) {
	var req submitQuoteRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.JobID == "" || req.Amount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	result, err := h.quoteService.SubmitQuote(c.Request.Context(), middleware.CallerID(c), req.JobID, *req.Amount, req.Comment)
	if err != nil {
		respondError(c, err, "Failed to create quote")
		return
	}
	c.JSON(http.StatusCreated, result)
}
