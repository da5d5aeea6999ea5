package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/apperr"
)

// respondError records err on the context for the request logger and writes the mapped
// status. Internal details never reach the client; fallback is shown instead.
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err, fallback)})
}

// bindJSON decodes the request body into v, answering 400 when it cannot.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}
