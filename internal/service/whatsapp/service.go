package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/domain/models"
	client "github.com/mamadbah2/kurban/pkg/clients/whatsapp"
)

var (
	// ErrSendingDisabled is returned when no Cloud API credentials are configured.
	ErrSendingDisabled = errors.New("whatsapp sending is not configured")
	// ErrNoPhone is returned when the requested buyer phone is empty.
	ErrNoPhone = errors.New("buyer has no phone number for this message")
)

const sendTimeout = 10 * time.Second

// MessagingService describes the operations the HTTP layer and scheduler can perform.
type MessagingService interface {
	BuyerMessage(a models.Animal, slot int, secondary bool) (models.BuyerMessage, error)
	NotifyBuyer(ctx context.Context, a models.Animal, slot int, secondary bool) (models.BuyerMessage, error)
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
	Enabled() bool
}

// MetaWhatsAppService composes buyer reminders and sends them through the
// WhatsApp Cloud API. With a nil client it still builds deep links.
type MetaWhatsAppService struct {
	cfg    config.WhatsAppConfig
	client client.Client
	logger *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. client may be nil.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// Enabled reports whether messages can be sent, not just linked.
func (s *MetaWhatsAppService) Enabled() bool {
	return s.client != nil
}

func (s *MetaWhatsAppService) settings() models.MessageSettings {
	return models.MessageSettings{CountryCode: s.cfg.CountryCode, LocationURL: s.cfg.LocationURL}
}

// BuyerMessage builds the reminder and wa.me link for the buyer in slot.
func (s *MetaWhatsAppService) BuyerMessage(a models.Animal, slot int, secondary bool) (models.BuyerMessage, error) {
	share, ok := a.Share(slot)
	if !ok {
		return models.BuyerMessage{}, fmt.Errorf("slot %d: %w", slot, models.ErrShareNotAssigned)
	}

	msg, ok := models.BuildBuyerMessage(a, share, secondary, s.settings())
	if !ok {
		return models.BuyerMessage{}, ErrNoPhone
	}
	return msg, nil
}

// NotifyBuyer sends the reminder to the buyer in slot.
func (s *MetaWhatsAppService) NotifyBuyer(ctx context.Context, a models.Animal, slot int, secondary bool) (models.BuyerMessage, error) {
	msg, err := s.BuyerMessage(a, slot, secondary)
	if err != nil {
		return models.BuyerMessage{}, err
	}

	if err := s.SendOutbound(ctx, models.OutboundMessageRequest{To: msg.Phone, Message: msg.Text}); err != nil {
		return models.BuyerMessage{}, err
	}

	s.logger.Info("buyer notified",
		zap.String("animal_id", a.ID),
		zap.Int("slot", slot),
		zap.Bool("secondary_phone", secondary))
	return msg, nil
}

// SendOutbound pushes a plain text message.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	if s.client == nil {
		return ErrSendingDisabled
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	if err != nil {
		return err
	}

	s.logger.Debug("whatsapp message sent", zap.String("message_id", resp.MessageID()))
	return nil
}
