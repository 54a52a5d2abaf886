package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/domain/models"
	"github.com/mamadbah2/kurban/internal/service/reporting"
	service "github.com/mamadbah2/kurban/internal/service/whatsapp"
)

// Reporting produces the money overview, summaries and exports.
type Reporting interface {
	Overview(ctx context.Context) (reporting.Overview, error)
	DailySummary(ctx context.Context) (string, error)
	ExportToSheet(ctx context.Context) (int, error)
	ExportEnabled() bool
}

// ReportHandler serves the seller dashboard reports.
type ReportHandler struct {
	reports   Reporting
	messaging service.MessagingService
	whatsapp  config.WhatsAppConfig
	logger    *zap.Logger
}

// NewReportHandler constructs the HTTP handler adapter.
func NewReportHandler(reports Reporting, messaging service.MessagingService, cfg config.WhatsAppConfig, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, messaging: messaging, whatsapp: cfg, logger: logger}
}

// Overview returns stats and the payment ledger.
func (h *ReportHandler) Overview(c *gin.Context) {
	ov, err := h.reports.Overview(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// Summary returns the daily summary text.
func (h *ReportHandler) Summary(c *gin.Context) {
	text, err := h.reports.DailySummary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// SendSummary sends the daily summary to the manager now.
func (h *ReportHandler) SendSummary(c *gin.Context) {
	if h.whatsapp.ManagerNumber == "" {
		respondError(c, h.logger, fmt.Errorf("manager number: %w", errNotConfigured))
		return
	}

	ctx := c.Request.Context()
	text, err := h.reports.DailySummary(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	req := models.OutboundMessageRequest{
		To:      models.InternationalNumber(h.whatsapp.ManagerNumber, h.whatsapp.CountryCode),
		Message: text,
	}
	if err := h.messaging.SendOutbound(ctx, req); err != nil {
		if isClientError(err) {
			respondError(c, h.logger, err)
			return
		}
		h.logger.Error("failed sending summary", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Error: "unable to send message"})
		return
	}
	c.Status(http.StatusAccepted)
}

// Export writes the inventory to the configured Google Sheet.
func (h *ReportHandler) Export(c *gin.Context) {
	if !h.reports.ExportEnabled() {
		respondError(c, h.logger, fmt.Errorf("sheet export: %w", errNotConfigured))
		return
	}

	rows, err := h.reports.ExportToSheet(c.Request.Context())
	if err != nil {
		h.logger.Error("sheet export failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Error: "unable to export to sheet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}
