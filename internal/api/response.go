package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

var statusByCode = map[services.ErrorCode]int{
	services.ErrorInvalid:    http.StatusBadRequest,
	services.ErrorNotFound:   http.StatusNotFound,
	services.ErrorConflict:   http.StatusConflict,
	services.ErrorStorage:    http.StatusInsufficientStorage,
	services.ErrorBadGateway: http.StatusBadGateway,
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status, known := statusByCode[se.Code]
		if !known {
			status = http.StatusInternalServerError
		}
		_ = c.Error(err)
		respondError(c, status, string(se.Code), err)
		return
	}
	if errors.Is(err, services.ErrInvalidResponse) {
		respondError(c, http.StatusBadRequest, string(services.ErrorInvalid), err)
		return
	}
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "internal", err)
}

func badRequest(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, string(services.ErrorInvalid), err)
}
