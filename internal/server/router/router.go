package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/server/handlers"
)

const requestIDHeader = "X-Request-ID"

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Animals  *handlers.AnimalHandler
	Shares   *handlers.ShareHandler
	Reports  *handlers.ReportHandler
	Messages *handlers.MessageHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(h.Auth.RequireSession())

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/session", h.Auth.Session)

	secured.GET("/payment-options", h.Animals.PaymentOptions)

	animals := secured.Group("/animals")
	animals.GET("", h.Animals.List)
	animals.POST("", h.Animals.Create)
	animals.GET("/stream", h.Animals.Stream)
	animals.GET("/draft", h.Animals.Draft)
	animals.POST("/normalize", h.Animals.Normalize)
	animals.GET("/number-check", h.Animals.CheckNumber)
	animals.GET("/last-number", h.Animals.LastNumber)
	animals.GET("/:id", h.Animals.Get)
	animals.PUT("/:id", h.Animals.Update)
	animals.DELETE("/:id", h.Animals.Delete)
	animals.GET("/:id/stream", h.Animals.StreamOne)
	animals.GET("/:id/draft", h.Animals.EditDraft)

	animals.GET("/:id/shares/:slot", h.Shares.Get)
	animals.PUT("/:id/shares/:slot", h.Shares.Assign)
	animals.DELETE("/:id/shares/:slot", h.Shares.Delete)
	animals.GET("/:id/shares/:slot/message", h.Shares.Message)
	animals.POST("/:id/shares/:slot/notify", h.Shares.Notify)

	reports := secured.Group("/reports")
	reports.GET("/overview", h.Reports.Overview)
	reports.GET("/summary", h.Reports.Summary)
	reports.POST("/summary/send", h.Reports.SendSummary)
	reports.POST("/export", h.Reports.Export)

	secured.POST("/messages", h.Messages.SendMessage)

	logger.Info("router initialized")

	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")))
	}
}
