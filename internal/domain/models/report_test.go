package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

func TestComputeLedger(t *testing.T) {
	large := sharedAnimal()
	large.BuyingPrice = price(50000)
	large.Shares = []models.Share{
		{ID: 1, PaidAmount: 10000},
		{ID: 2, PaidAmount: 4000},
		{ID: 3, PaidAmount: 0},
	}
	small := models.Animal{Type: models.AnimalTypeSmall, TotalPrice: 9000, TotalShares: 1, Shares: []models.Share{{ID: 1, PaidAmount: 9000}}}
	unsold := models.Animal{Type: models.AnimalTypeSmall, TotalPrice: 8000, TotalShares: 1}

	l := models.ComputeLedger([]models.Animal{large, small, unsold})

	assert.Equal(t, 39000.0, l.Expected)
	assert.Equal(t, 23000.0, l.Paid)
	assert.Equal(t, 16000.0, l.Outstanding)
	assert.Equal(t, 2, l.UnpaidBuyers)
	assert.Equal(t, 50000.0, l.BuyingCost)
}
