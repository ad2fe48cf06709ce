package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr-rsr/mnist-gateway/internal/ink"
	"github.com/mr-rsr/mnist-gateway/internal/session"
	"github.com/mr-rsr/mnist-gateway/internal/usecase"
)

// HealthChecker probes the classification backend for the health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// insufficientInkMessage is the guidance shown when the gate rejects a
// near-blank drawing. No backend call happens in that case.
const insufficientInkMessage = "Please draw a digit before classifying"

type createSessionRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type strokeEvent struct {
	Type    string      `json:"type" binding:"required"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Touch   bool        `json:"touch"`
	Touches []ink.Point `json:"touches"`
}

type strokeBatchRequest struct {
	Events []strokeEvent `json:"events" binding:"required"`
}

type brushRequest struct {
	Size int `json:"size" binding:"required"`
}

// RegisterRoutes wires the HTTP surface to the Gin router. Drawing
// endpoints are anonymous; history and metrics sit behind authMiddleware.
func RegisterRoutes(router *gin.Engine, sessions *session.Manager, uc *usecase.PredictionUseCase, backend HealthChecker, authMiddleware gin.HandlerFunc) {
	router.GET("/api/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		c.JSON(http.StatusOK, gin.H{
			"message":           "digit classification gateway is running",
			"backend_reachable": backend.Ping(ctx) == nil,
		})
	})

	router.POST("/api/sessions", func(c *gin.Context) {
		var req createSessionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session payload"})
				return
			}
		}
		sess := sessions.Create(req.Width, req.Height)
		c.JSON(http.StatusCreated, gin.H{
			"session_id": sess.ID,
			"view":       sess.View(),
		})
	})

	router.POST("/api/sessions/:id/strokes", withSession(sessions, func(c *gin.Context, sess *session.Session) {
		var req strokeBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stroke payload"})
			return
		}

		events := make([]ink.PointerEvent, 0, len(req.Events))
		for _, ev := range req.Events {
			pointer, ok := normalize(ev)
			if !ok {
				continue
			}
			events = append(events, pointer)
		}
		sess.ApplyEvents(events)
		c.JSON(http.StatusOK, gin.H{"applied": len(events)})
	}))

	router.POST("/api/sessions/:id/brush", withSession(sessions, func(c *gin.Context, sess *session.Session) {
		var req brushRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "brush size must be a positive integer"})
			return
		}
		sess.SetBrushSize(req.Size)
		c.JSON(http.StatusOK, gin.H{"size": req.Size})
	}))

	router.POST("/api/sessions/:id/clear", withSession(sessions, func(c *gin.Context, sess *session.Session) {
		sess.Clear()
		c.JSON(http.StatusOK, gin.H{"view": sess.View()})
	}))

	router.GET("/api/sessions/:id/image", withSession(sessions, func(c *gin.Context, sess *session.Session) {
		imageData, err := sess.ExportImage()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode drawing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"image_data": imageData})
	}))

	router.POST("/api/sessions/:id/classify", withSession(sessions, func(c *gin.Context, sess *session.Session) {
		result, err := uc.Classify(c.Request.Context(), sess)
		switch {
		case errors.Is(err, ink.ErrInsufficientInk):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": insufficientInkMessage,
				"view":  sess.View(),
			})
			return
		case errors.Is(err, session.ErrClassificationInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "classification already in progress"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Backend failures land here too: the panel carries the error
		// state and the session stays interactive.
		c.JSON(http.StatusOK, gin.H{
			"request_id": result.RequestID,
			"view":       result.View,
		})
	}))

	admin := router.Group("/api", authMiddleware)

	admin.GET("/history/:request_id", func(c *gin.Context) {
		requestID := c.Param("request_id")
		log, err := uc.GetPrediction(c.Request.Context(), requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "prediction not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"request_id": log.RequestID,
			"session_id": log.SessionID,
			"digit":      log.Digit,
			"confidence": log.Confidence,
			"tier":       log.Tier,
			"latency_ms": log.LatencyMs,
			"cache_hit":  log.CacheHit,
			"created_at": log.CreatedAt,
		})
	})

	admin.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func withSession(sessions *session.Manager, handler func(*gin.Context, *session.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		handler(c, sess)
	}
}

// normalize funnels both input families into the surface's pointer API.
// Touch payloads go through the same begin/extend/end path as mouse input;
// only the first touch point counts.
func normalize(ev strokeEvent) (ink.PointerEvent, bool) {
	kind := ink.EventType(ev.Type)
	switch kind {
	case ink.EventBegin, ink.EventMove, ink.EventEnd:
	default:
		return ink.PointerEvent{}, false
	}

	if ev.Touch {
		return ink.NormalizeTouch(kind, ev.Touches)
	}
	return ink.PointerEvent{Type: kind, At: ink.Point{X: ev.X, Y: ev.Y}}, true
}
