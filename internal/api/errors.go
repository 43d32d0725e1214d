package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maasd/maasd/internal/session"
)

// errBadRequest marks client-side failures: unparsable ids, missing
// fields, malformed JSON documents. Everything else from the lower
// layers is the engine's or the store's fault.
var errBadRequest = errors.New("api: invalid request")

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnknownTask):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
