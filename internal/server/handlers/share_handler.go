package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
	service "github.com/mamadbah2/kurban/internal/service/whatsapp"
)

// ShareHandler manages the buyers of an animal's share slots.
type ShareHandler struct {
	inventory Inventory
	messaging service.MessagingService
	logger    *zap.Logger
}

// NewShareHandler constructs the HTTP handler adapter.
func NewShareHandler(inventory Inventory, messaging service.MessagingService, logger *zap.Logger) *ShareHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareHandler{inventory: inventory, messaging: messaging, logger: logger}
}

// Get returns the buyer form for a slot, pre-filled when the slot is sold.
func (h *ShareHandler) Get(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	a, err := h.inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if slot < 1 || slot > a.TotalShares {
		badRequest(c, fmt.Sprintf("slot must be between 1 and %d", a.TotalShares))
		return
	}

	resp := gin.H{
		"slot":           slot,
		"sharePrice":     a.SharePrice(),
		"sharePriceText": models.FormatCurrency(a.SharePrice()),
		"assigned":       false,
		"draft":          models.ShareDraft{},
	}
	if share, ok := a.Share(slot); ok {
		resp["assigned"] = true
		resp["draft"] = models.ShareDraftFrom(share)
		resp["remainingDebt"] = a.RemainingDebt(share)
	}
	c.JSON(http.StatusOK, resp)
}

// Assign writes the buyer of a slot, adding or replacing it.
func (h *ShareHandler) Assign(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var draft models.ShareDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	a, err := h.inventory.AssignShare(c.Request.Context(), c.Param("id"), slot, draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detailOf(a))
}

// Delete frees a slot. Requires confirm=true.
func (h *ShareHandler) Delete(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	if !confirmed(c) {
		respondError(c, h.logger, errConfirmationRequired)
		return
	}

	a, err := h.inventory.DeleteShare(c.Request.Context(), c.Param("id"), slot)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detailOf(a))
}

// secondaryPhone reads phone=2 as the buyer's second number.
func secondaryPhone(c *gin.Context) bool {
	return c.Query("phone") == "2"
}

// Message returns the reminder text and wa.me link for the buyer of a slot.
func (h *ShareHandler) Message(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	a, err := h.inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	msg, err := h.messaging.BuyerMessage(a, slot, secondaryPhone(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "canSend": h.messaging.Enabled()})
}

// Notify sends the reminder to the buyer through the Cloud API.
func (h *ShareHandler) Notify(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	a, err := h.inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	msg, err := h.messaging.NotifyBuyer(c.Request.Context(), a, slot, secondaryPhone(c))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("failed notifying buyer", zap.String("animal_id", a.ID), zap.Int("slot", slot), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Error: "unable to send message"})
			return
		}
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": msg})
}

func isClientError(err error) bool {
	status, _ := statusFor(err)
	return status < http.StatusInternalServerError || status == http.StatusServiceUnavailable
}
