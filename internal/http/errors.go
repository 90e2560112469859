package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/database/blobs"
	"github.com/vrwarp/versicle/internal/sanitize"
	"github.com/vrwarp/versicle/internal/services"
)

// statusFor maps service and storage errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case services.ErrNotFound.Has(err):
		return http.StatusNotFound
	case blobs.ErrFingerprintMismatch.Has(err):
		return http.StatusConflict
	case sanitize.ErrIntegrity.Has(err):
		return http.StatusUnprocessableEntity
	case database.ErrStorageFull.Has(err):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.IndentedJSON(statusFor(err), gin.H{"error": err.Error()})
}
