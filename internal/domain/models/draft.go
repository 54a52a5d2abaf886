package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var digitsPattern = regexp.MustCompile(`^[0-9]+$`)

// NumberText is a numeric form field kept as typed text. It decodes from
// both JSON strings and JSON numbers.
type NumberText string

// UnmarshalJSON accepts "12", 12 and null.
func (n *NumberText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumberText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("number text: %w", err)
	}
	*n = NumberText(num.String())
	return nil
}

// AnimalDraft is the create/edit form of an animal before validation.
type AnimalDraft struct {
	Type          AnimalType   `json:"type"`
	AnimalNumber  NumberText   `json:"animalNumber"`
	Name          string       `json:"name"`
	TotalPrice    *float64     `json:"totalPrice"`
	BuyingPrice   *float64     `json:"buyingPrice,omitempty"`
	TotalShares   int          `json:"totalShares"`
	DeliveryType  DeliveryType `json:"deliveryType"`
	PhotoURL      string       `json:"photoUrl,omitempty"`
	QueueNo       string       `json:"queueNo,omitempty"`
	SlaughterTime string       `json:"slaughterTime,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}

// NewAnimalDraft returns the blank form: a shared large animal with seven shares.
func NewAnimalDraft() AnimalDraft {
	return AnimalDraft{
		Type:         AnimalTypeLarge,
		TotalShares:  MaxLargeShares,
		DeliveryType: DeliveryShared,
	}
}

// DraftFromAnimal pre-fills the edit form with the current values of a.
func DraftFromAnimal(a Animal) AnimalDraft {
	price := a.TotalPrice
	d := AnimalDraft{
		Type:          a.Type,
		AnimalNumber:  NumberText(strconv.Itoa(a.AnimalNumber)),
		Name:          a.Name,
		TotalPrice:    &price,
		TotalShares:   a.TotalShares,
		DeliveryType:  a.DeliveryType,
		PhotoURL:      a.PhotoURL,
		QueueNo:       a.QueueNo,
		SlaughterTime: a.SlaughterTime,
		Notes:         a.Notes,
	}
	if a.BuyingPrice != nil {
		v := *a.BuyingPrice
		d.BuyingPrice = &v
	}
	if d.TotalShares == 0 {
		d.TotalShares = MaxLargeShares
	}
	return d
}

// Normalize couples delivery type and share count to the animal type.
// Small animals are sold whole with a small-animal delivery type. Large
// animals fall back to a shared seven-way split when the delivery type does
// not fit the category, and any non-shared delivery means a single share.
func (d *AnimalDraft) Normalize() {
	switch d.Type {
	case AnimalTypeSmall:
		if !d.Type.AllowsDelivery(d.DeliveryType) {
			d.DeliveryType = DeliveryOnFoot
		}
		d.TotalShares = 1
	case AnimalTypeLarge:
		if !d.Type.AllowsDelivery(d.DeliveryType) {
			d.DeliveryType = DeliveryShared
			d.TotalShares = MaxLargeShares
			return
		}
		if d.DeliveryType != DeliveryShared {
			d.TotalShares = 1
		}
	}
}

// Validate checks the draft and converts it to an AnimalInput. Uniqueness of
// the animal number needs the whole inventory and is checked by the caller.
func (d AnimalDraft) Validate() (AnimalInput, error) {
	if !d.Type.Valid() {
		return AnimalInput{}, invalid("type", CodeInvalidType, "Geçersiz hayvan türü")
	}

	number, err := ParseAnimalNumber(string(d.AnimalNumber))
	if err != nil {
		return AnimalInput{}, err
	}

	if !d.Type.AllowsDelivery(d.DeliveryType) {
		return AnimalInput{}, invalid("deliveryType", CodeInvalidDeliveryType,
			fmt.Sprintf("%s için teslim türü geçersiz: %s", d.Type.Label(), d.DeliveryType))
	}

	if d.Type == AnimalTypeLarge && d.TotalShares > MaxLargeShares {
		return AnimalInput{}, invalid("totalShares", CodeTooManyShares,
			fmt.Sprintf("Büyükbaş hayvan için hisse sayısı en fazla %d olabilir", MaxLargeShares))
	}
	if d.TotalShares < 1 {
		return AnimalInput{}, invalid("totalShares", CodeInvalidShareCount, "Hisse sayısı en az 1 olmalıdır")
	}
	if d.DeliveryType != DeliveryShared && d.TotalShares != 1 {
		return AnimalInput{}, invalid("totalShares", CodeInvalidShareCount, "Hisseli olmayan satışta hisse sayısı 1 olmalıdır")
	}

	if d.TotalPrice == nil {
		return AnimalInput{}, invalid("totalPrice", CodeTotalPriceRequired, "Satış fiyatı girilmesi zorunludur")
	}
	if *d.TotalPrice < 0 {
		return AnimalInput{}, invalid("totalPrice", CodeNegativeAmount, "Satış fiyatı negatif olamaz")
	}

	var buying *float64
	if d.BuyingPrice != nil {
		if *d.BuyingPrice < 0 {
			return AnimalInput{}, invalid("buyingPrice", CodeNegativeAmount, "Alış fiyatı negatif olamaz")
		}
		v := *d.BuyingPrice
		buying = &v
	}

	return AnimalInput{
		Type:          d.Type,
		AnimalNumber:  number,
		Name:          strings.TrimSpace(d.Name),
		TotalPrice:    *d.TotalPrice,
		BuyingPrice:   buying,
		TotalShares:   d.TotalShares,
		DeliveryType:  d.DeliveryType,
		PhotoURL:      d.PhotoURL,
		QueueNo:       strings.TrimSpace(d.QueueNo),
		SlaughterTime: strings.TrimSpace(d.SlaughterTime),
		Notes:         d.Notes,
	}, nil
}

// ParseAnimalNumber turns the typed animal number into a positive integer.
func ParseAnimalNumber(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid("animalNumber", CodeAnimalNumberRequired, "Hayvan numarası girilmesi zorunludur")
	}
	if !digitsPattern.MatchString(raw) {
		return 0, invalid("animalNumber", CodeAnimalNumberNotNumeric, "Hayvan numarası sadece rakamlardan oluşmalıdır")
	}
	number, err := strconv.Atoi(raw)
	if err != nil || number <= 0 {
		return 0, invalid("animalNumber", CodeAnimalNumberNotNumeric, "Hayvan numarası pozitif bir tam sayı olmalıdır")
	}
	return number, nil
}

// CheckShareFloor rejects an edit that would leave assigned shares outside
// the new share count.
func CheckShareFloor(current Animal, in AnimalInput) error {
	if highest := current.HighestSlot(); in.TotalShares < highest {
		return invalid("totalShares", CodeSharesBelowSold,
			fmt.Sprintf("%d numaralı hisse satılmış, hisse sayısı %d altına düşürülemez", highest, highest))
	}
	return nil
}
