package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/patient-intake/internal/common"
	"github.com/suPer8Hu/patient-intake/internal/consultation"
	"gorm.io/gorm"
)

type turnReq struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *Handler) ProcessTurn(c *gin.Context) {
	var req turnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	res, err := h.Consultations.ProcessTurn(c.Request.Context(), consultation.TurnInput{
		SessionID: req.SessionID,
		UserID:    userIDFromContext(c),
		Message:   req.Message,
	})
	if err != nil {
		if errors.Is(err, consultation.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "session not found")
			return
		}
		log.Printf("[ProcessTurn] session=%s err=%v", req.SessionID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to process turn")
		return
	}

	common.OK(c, gin.H{
		"session_id": res.SessionID,
		"stage":      res.Stage,
		"completed":  res.Completed,
		"messages":   res.Messages,
	})
}

func (h *Handler) GetConsultation(c *gin.Context) {
	cons, err := h.Consultations.Get(c.Request.Context(), c.Param("session_id"), userIDFromContext(c))
	if err != nil {
		h.failLookup(c, err)
		return
	}
	common.OK(c, gin.H{
		"consultation": cons,
		"symptoms":     nonNil(cons.Symptoms()),
	})
}

func (h *Handler) ListResponses(c *gin.Context) {
	rs, err := h.Consultations.Responses(c.Request.Context(), c.Param("session_id"), userIDFromContext(c))
	if err != nil {
		h.failLookup(c, err)
		return
	}
	if rs == nil {
		rs = []consultation.Response{}
	}
	common.OK(c, gin.H{"responses": rs})
}

func (h *Handler) GetSummary(c *gin.Context) {
	s, err := h.Consultations.Summary(c.Request.Context(), c.Param("session_id"), userIDFromContext(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "summary not generated")
			return
		}
		h.failLookup(c, err)
		return
	}
	common.OK(c, gin.H{
		"session_id":      s.SessionID,
		"summary_text":    s.SummaryText,
		"key_findings":    nonNil(consultation.Strings(s.KeyFindings)),
		"red_flags":       nonNil(consultation.Strings(s.RedFlags)),
		"recommendations": nonNil(consultation.Strings(s.Recommendations)),
		"next_steps":      nonNil(consultation.Strings(s.NextSteps)),
		"generated_at":    s.GeneratedAt,
	})
}

func (h *Handler) GetQuestions(c *gin.Context) {
	symptom := strings.TrimSpace(c.Query("symptom"))
	if symptom == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "symptom required")
		return
	}
	set, err := h.Questions.Lookup(c.Request.Context(), symptom)
	if err != nil {
		log.Printf("[GetQuestions] symptom=%q err=%v", symptom, err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to look up questions")
		return
	}
	common.OK(c, set)
}

func (h *Handler) failLookup(c *gin.Context, err error) {
	if errors.Is(err, consultation.ErrSessionNotFound) {
		common.Fail(c, http.StatusNotFound, 40401, "session not found")
		return
	}
	log.Printf("[lookup] path=%s err=%v", c.Request.URL.Path, err)
	common.Fail(c, http.StatusInternalServerError, 50002, "db error")
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
