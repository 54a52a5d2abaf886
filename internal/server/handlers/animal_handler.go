package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

// Inventory is the write path for animals and shares.
type Inventory interface {
	Get(ctx context.Context, id string) (models.Animal, error)
	CreateAnimal(ctx context.Context, draft models.AnimalDraft) (string, error)
	UpdateAnimal(ctx context.Context, id string, draft models.AnimalDraft) error
	DeleteAnimal(ctx context.Context, id string) error
	AssignShare(ctx context.Context, id string, slot int, draft models.ShareDraft) (models.Animal, error)
	DeleteShare(ctx context.Context, id string, slot int) (models.Animal, error)
	PaymentOptions() models.PaymentOptions
}

// AnimalView is the cached read model the list and detail screens use.
type AnimalView interface {
	Snapshot() []models.Animal
	Get(id string) (models.Animal, bool)
	Listen(fn func([]models.Animal)) (cancel func())
	NumberTaken(number int, t models.AnimalType, excludeID string) bool
	LastNumber(t models.AnimalType) int
}

// AnimalHandler serves the animal list, detail and forms.
type AnimalHandler struct {
	inventory Inventory
	view      AnimalView
	logger    *zap.Logger
}

// NewAnimalHandler constructs the HTTP handler adapter.
func NewAnimalHandler(inventory Inventory, view AnimalView, logger *zap.Logger) *AnimalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnimalHandler{inventory: inventory, view: view, logger: logger}
}

type animalSummary struct {
	models.Animal
	SharePrice      float64 `json:"sharePrice"`
	SharePriceText  string  `json:"sharePriceText"`
	BuyingPriceText string  `json:"buyingPriceText"`
	RemainingShares int     `json:"remainingShares"`
	SoldOut         bool    `json:"soldOut"`
}

func summarize(a models.Animal) animalSummary {
	return animalSummary{
		Animal:          a,
		SharePrice:      a.SharePrice(),
		SharePriceText:  models.FormatCurrency(a.SharePrice()),
		BuyingPriceText: models.FormatOptionalCurrency(a.BuyingPrice),
		RemainingShares: a.RemainingShares(),
		SoldOut:         a.SoldOut(),
	}
}

type animalDetail struct {
	animalSummary
	Slots []models.Slot `json:"slots"`
}

func detailOf(a models.Animal) animalDetail {
	return animalDetail{animalSummary: summarize(a), Slots: a.Slots()}
}

type listResponse struct {
	Filter  models.Filter   `json:"filter"`
	Animals []animalSummary `json:"animals"`
	Stats   models.Stats    `json:"stats"`
}

func listOf(animals []models.Animal, filter models.Filter) listResponse {
	view := models.ListView(animals, filter)
	items := make([]animalSummary, 0, len(view))
	for _, a := range view {
		items = append(items, summarize(a))
	}
	return listResponse{Filter: filter, Animals: items, Stats: models.ComputeStats(animals)}
}

func (h *AnimalHandler) filter(c *gin.Context) (models.Filter, bool) {
	filter, ok := models.ParseFilter(c.Query("filter"))
	if !ok {
		badRequest(c, "filter must be one of ALL, LARGE, SMALL")
	}
	return filter, ok
}

// List returns the filtered, ordered animal list with overall stats.
func (h *AnimalHandler) List(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, listOf(h.view.Snapshot(), filter))
}

// Stream pushes the list as server-sent events whenever the inventory changes.
func (h *AnimalHandler) Stream(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	h.logger.Debug("list stream opened", zap.String("filter", string(filter)))
	streamSnapshots(c, h.view, func(animals []models.Animal) bool {
		c.SSEvent("list", listOf(animals, filter))
		return true
	})
	h.logger.Debug("list stream closed")
}

// Get returns one animal with its slots, from the cache when possible.
func (h *AnimalHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if a, ok := h.view.Get(id); ok {
		c.JSON(http.StatusOK, detailOf(a))
		return
	}

	a, err := h.inventory.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detailOf(a))
}

// StreamOne pushes the animal on every change and a final "gone" event once
// it no longer exists.
func (h *AnimalHandler) StreamOne(c *gin.Context) {
	id := c.Param("id")
	streamSnapshots(c, h.view, func(animals []models.Animal) bool {
		for _, a := range animals {
			if a.ID == id {
				c.SSEvent("animal", detailOf(a))
				return true
			}
		}
		c.SSEvent("gone", gin.H{"id": id})
		return false
	})
}

// Draft returns a blank create form.
func (h *AnimalHandler) Draft(c *gin.Context) {
	draft := models.NewAnimalDraft()
	c.JSON(http.StatusOK, gin.H{
		"draft":         draft,
		"deliveryTypes": models.DeliveryTypesFor(draft.Type),
	})
}

// EditDraft returns the edit form pre-filled from the stored animal.
func (h *AnimalHandler) EditDraft(c *gin.Context) {
	a, err := h.inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	draft := models.DraftFromAnimal(a)
	c.JSON(http.StatusOK, gin.H{
		"draft":         draft,
		"deliveryTypes": models.DeliveryTypesFor(draft.Type),
	})
}

// Normalize applies the type and delivery coupling to a draft without saving it.
func (h *AnimalHandler) Normalize(c *gin.Context) {
	var draft models.AnimalDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	draft.Normalize()
	c.JSON(http.StatusOK, gin.H{
		"draft":         draft,
		"deliveryTypes": models.DeliveryTypesFor(draft.Type),
	})
}

// CheckNumber tells whether an animal number is still free in its category.
func (h *AnimalHandler) CheckNumber(c *gin.Context) {
	t := models.AnimalType(c.Query("type"))
	if !t.Valid() {
		badRequest(c, "type must be büyükbaş or küçükbaş")
		return
	}
	number, err := models.ParseAnimalNumber(c.Query("number"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	taken := h.view.NumberTaken(number, t, c.Query("excludeId"))
	c.JSON(http.StatusOK, gin.H{"type": t, "number": number, "available": !taken})
}

// LastNumber returns the highest number used in a category and the next free one.
func (h *AnimalHandler) LastNumber(c *gin.Context) {
	t := models.AnimalType(c.Query("type"))
	if !t.Valid() {
		badRequest(c, "type must be büyükbaş or küçükbaş")
		return
	}
	last := h.view.LastNumber(t)
	c.JSON(http.StatusOK, gin.H{"type": t, "lastNumber": last, "next": last + 1})
}

// Create stores a new animal.
func (h *AnimalHandler) Create(c *gin.Context) {
	var draft models.AnimalDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id, err := h.inventory.CreateAnimal(c.Request.Context(), draft)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Update saves an edited animal.
func (h *AnimalHandler) Update(c *gin.Context) {
	var draft models.AnimalDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.inventory.UpdateAnimal(c.Request.Context(), c.Param("id"), draft); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes an animal and all its shares. Requires confirm=true.
func (h *AnimalHandler) Delete(c *gin.Context) {
	if !confirmed(c) {
		respondError(c, h.logger, errConfirmationRequired)
		return
	}
	if err := h.inventory.DeleteAnimal(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PaymentOptions lists the accepted payment receivers and methods.
func (h *AnimalHandler) PaymentOptions(c *gin.Context) {
	opts := h.inventory.PaymentOptions()
	c.JSON(http.StatusOK, gin.H{"receivers": opts.Receivers, "methods": opts.Methods})
}
