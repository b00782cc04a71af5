package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/patient-intake/internal/common"
	"github.com/suPer8Hu/patient-intake/internal/consultation"
	"github.com/suPer8Hu/patient-intake/internal/httpapi/middleware"
	"github.com/suPer8Hu/patient-intake/internal/questionbank"
)

type Handler struct {
	Consultations *consultation.Service
	Questions     *questionbank.Bank
}

func NewHandler(svc *consultation.Service, bank *questionbank.Bank) *Handler {
	return &Handler{Consultations: svc, Questions: bank}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// userIDFromContext returns the authenticated user, or nil for anonymous calls.
func userIDFromContext(c *gin.Context) *string {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return nil
	}
	return &id
}
