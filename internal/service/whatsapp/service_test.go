package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/domain/models"
	client "github.com/mamadbah2/kurban/pkg/clients/whatsapp"
)

type fakeClient struct {
	sent []client.SendTextMessageRequest
	err  error
}

func (f *fakeClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &client.SendTextMessageResponse{}, nil
}

var testConfig = config.WhatsAppConfig{CountryCode: "90", LocationURL: "https://maps.example/k"}

func soldAnimal() models.Animal {
	return models.Animal{
		ID:           "a1",
		Type:         models.AnimalTypeLarge,
		TotalPrice:   70000,
		TotalShares:  7,
		DeliveryType: models.DeliveryShared,
		SoldShares:   1,
		Shares: []models.Share{
			{ID: 2, CustomerName: "Ayşe", CustomerPhone: "5321234567", PaidAmount: 2500},
		},
	}
}

func TestBuyerMessageWithoutClient(t *testing.T) {
	svc := NewMetaWhatsAppService(testConfig, nil, nil)
	assert.False(t, svc.Enabled())

	msg, err := svc.BuyerMessage(soldAnimal(), 2, false)
	require.NoError(t, err)
	assert.Equal(t, "905321234567", msg.Phone)
	assert.Contains(t, msg.Text, "Kalan borcunuz: 7.500 TL")
	assert.Contains(t, msg.Link, "https://wa.me/905321234567")

	_, err = svc.BuyerMessage(soldAnimal(), 3, false)
	assert.ErrorIs(t, err, models.ErrShareNotAssigned)

	_, err = svc.BuyerMessage(soldAnimal(), 2, true)
	assert.ErrorIs(t, err, ErrNoPhone)

	_, err = svc.NotifyBuyer(context.Background(), soldAnimal(), 2, false)
	assert.ErrorIs(t, err, ErrSendingDisabled)
}

func TestNotifyBuyer(t *testing.T) {
	fake := &fakeClient{}
	svc := NewMetaWhatsAppService(testConfig, fake, nil)
	require.True(t, svc.Enabled())

	msg, err := svc.NotifyBuyer(context.Background(), soldAnimal(), 2, false)
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "905321234567", fake.sent[0].To)
	assert.Equal(t, msg.Text, fake.sent[0].Body)
}

func TestNotifyBuyerSendFailure(t *testing.T) {
	fake := &fakeClient{err: errors.New("whatsapp api error: code=131030")}
	svc := NewMetaWhatsAppService(testConfig, fake, nil)

	_, err := svc.NotifyBuyer(context.Background(), soldAnimal(), 2, false)
	assert.ErrorIs(t, err, fake.err)
}
