package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/patient-intake/internal/common"
	"github.com/suPer8Hu/patient-intake/internal/config"
	"github.com/suPer8Hu/patient-intake/internal/consultation"
	"github.com/suPer8Hu/patient-intake/internal/httpapi/handlers"
	"github.com/suPer8Hu/patient-intake/internal/httpapi/middleware"
	"github.com/suPer8Hu/patient-intake/internal/questionbank"
	"github.com/suPer8Hu/patient-intake/internal/store/redisstore"
	"gorm.io/gorm"
)

// NewRouter wires the service over db. rds and pub are optional.
func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub consultation.Publisher) *gin.Engine {
	var (
		cache  questionbank.Cache
		locker consultation.SessionLocker
	)
	if rds != nil {
		cache = rds
		locker = rds
	}

	bank := questionbank.NewBank(questionbank.NewDocumentStore(db), cache)
	svc := consultation.NewService(consultation.NewRepo(db), consultation.Options{
		Questions:    bank,
		Locker:       locker,
		Publisher:    pub,
		MaxQuestions: cfg.MaxFollowUpQuestions,
	})
	h := handlers.NewHandler(svc, bank)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)
	r.GET("/questions", h.GetQuestions)

	// consultations (bearer token optional; owned sessions need it)
	g := r.Group("/consultations")
	g.Use(middleware.OptionalAuth(cfg.JWTSecret))
	g.POST("/turn", h.ProcessTurn)
	g.GET("/:session_id", h.GetConsultation)
	g.GET("/:session_id/responses", h.ListResponses)
	g.GET("/:session_id/summary", h.GetSummary)
	return r
}
