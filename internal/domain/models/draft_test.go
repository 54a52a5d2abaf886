package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

func price(v float64) *float64 { return &v }

func validDraft() models.AnimalDraft {
	d := models.NewAnimalDraft()
	d.AnimalNumber = "12"
	d.Name = "Sarı inek"
	d.TotalPrice = price(70000)
	return d
}

func TestNormalizeSwitchToSmall(t *testing.T) {
	d := models.NewAnimalDraft()
	require.Equal(t, 7, d.TotalShares)

	d.Type = models.AnimalTypeSmall
	d.Normalize()

	assert.Equal(t, models.DeliveryOnFoot, d.DeliveryType)
	assert.Equal(t, 1, d.TotalShares)
	assert.True(t, models.AnimalTypeSmall.AllowsDelivery(d.DeliveryType))
}

func TestNormalizeSmallKeepsValidDelivery(t *testing.T) {
	d := models.AnimalDraft{Type: models.AnimalTypeSmall, DeliveryType: models.DeliveryPortioned, TotalShares: 3}
	d.Normalize()

	assert.Equal(t, models.DeliveryPortioned, d.DeliveryType)
	assert.Equal(t, 1, d.TotalShares)
}

func TestNormalizeLarge(t *testing.T) {
	t.Run("invalid delivery falls back to shared", func(t *testing.T) {
		d := models.AnimalDraft{Type: models.AnimalTypeLarge, DeliveryType: models.DeliveryPortioned, TotalShares: 1}
		d.Normalize()
		assert.Equal(t, models.DeliveryShared, d.DeliveryType)
		assert.Equal(t, models.MaxLargeShares, d.TotalShares)
	})

	t.Run("non shared delivery means one share", func(t *testing.T) {
		d := models.AnimalDraft{Type: models.AnimalTypeLarge, DeliveryType: models.DeliveryCarcass, TotalShares: 5}
		d.Normalize()
		assert.Equal(t, models.DeliveryCarcass, d.DeliveryType)
		assert.Equal(t, 1, d.TotalShares)
	})

	t.Run("shared keeps the entered count", func(t *testing.T) {
		d := models.AnimalDraft{Type: models.AnimalTypeLarge, DeliveryType: models.DeliveryShared, TotalShares: 5}
		d.Normalize()
		assert.Equal(t, 5, d.TotalShares)
	})
}

func TestValidateDraft(t *testing.T) {
	in, err := validDraft().Validate()
	require.NoError(t, err)
	assert.Equal(t, 12, in.AnimalNumber)
	assert.Equal(t, models.AnimalTypeLarge, in.Type)
	assert.Equal(t, 7, in.TotalShares)
	assert.Equal(t, 70000.0, in.TotalPrice)
	assert.Nil(t, in.BuyingPrice)
}

func TestValidateDraftErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(d *models.AnimalDraft)
		code   models.ValidationCode
	}{
		{"missing number", func(d *models.AnimalDraft) { d.AnimalNumber = " " }, models.CodeAnimalNumberRequired},
		{"number with letters", func(d *models.AnimalDraft) { d.AnimalNumber = "12a" }, models.CodeAnimalNumberNotNumeric},
		{"zero number", func(d *models.AnimalDraft) { d.AnimalNumber = "0" }, models.CodeAnimalNumberNotNumeric},
		{"negative number", func(d *models.AnimalDraft) { d.AnimalNumber = "-3" }, models.CodeAnimalNumberNotNumeric},
		{"unknown type", func(d *models.AnimalDraft) { d.Type = "keçi" }, models.CodeInvalidType},
		{"delivery of other category", func(d *models.AnimalDraft) { d.DeliveryType = models.DeliveryPortioned }, models.CodeInvalidDeliveryType},
		{"eight shares", func(d *models.AnimalDraft) { d.TotalShares = 8 }, models.CodeTooManyShares},
		{"zero shares", func(d *models.AnimalDraft) { d.TotalShares = 0 }, models.CodeInvalidShareCount},
		{"carcass split", func(d *models.AnimalDraft) {
			d.DeliveryType = models.DeliveryCarcass
			d.TotalShares = 3
		}, models.CodeInvalidShareCount},
		{"missing price", func(d *models.AnimalDraft) { d.TotalPrice = nil }, models.CodeTotalPriceRequired},
		{"negative price", func(d *models.AnimalDraft) { d.TotalPrice = price(-1) }, models.CodeNegativeAmount},
		{"negative buying price", func(d *models.AnimalDraft) { d.BuyingPrice = price(-1) }, models.CodeNegativeAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			_, err := d.Validate()
			require.Error(t, err)
			assert.True(t, models.IsValidation(err, tc.code), "got %v", err)
		})
	}
}

func TestNumberTextDecoding(t *testing.T) {
	var d models.AnimalDraft
	require.NoError(t, json.Unmarshal([]byte(`{"animalNumber": 42}`), &d))
	assert.Equal(t, models.NumberText("42"), d.AnimalNumber)

	require.NoError(t, json.Unmarshal([]byte(`{"animalNumber": "07"}`), &d))
	assert.Equal(t, models.NumberText("07"), d.AnimalNumber)

	require.NoError(t, json.Unmarshal([]byte(`{"animalNumber": null}`), &d))
	assert.Equal(t, models.NumberText(""), d.AnimalNumber)

	assert.Error(t, json.Unmarshal([]byte(`{"animalNumber": true}`), &d))
}

func TestDraftFromAnimal(t *testing.T) {
	a := models.Animal{
		Type:         models.AnimalTypeLarge,
		AnimalNumber: 4,
		TotalPrice:   42000,
		BuyingPrice:  price(30000),
		TotalShares:  7,
		DeliveryType: models.DeliveryShared,
	}
	d := models.DraftFromAnimal(a)
	in, err := d.Validate()
	require.NoError(t, err)
	assert.Equal(t, 4, in.AnimalNumber)
	require.NotNil(t, in.BuyingPrice)
	assert.Equal(t, 30000.0, *in.BuyingPrice)

	*d.BuyingPrice = 1
	assert.Equal(t, 30000.0, *a.BuyingPrice)
}

func TestCheckShareFloor(t *testing.T) {
	a := models.Animal{TotalShares: 7, Shares: []models.Share{{ID: 2}, {ID: 5}}}

	assert.NoError(t, models.CheckShareFloor(a, models.AnimalInput{TotalShares: 5}))
	err := models.CheckShareFloor(a, models.AnimalInput{TotalShares: 4})
	assert.True(t, models.IsValidation(err, models.CodeSharesBelowSold))
}
