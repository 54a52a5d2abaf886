package models

import (
	"sort"
	"time"
)

// AnimalType is the livestock category an animal is sold under.
type AnimalType string

const (
	AnimalTypeLarge AnimalType = "büyükbaş"
	AnimalTypeSmall AnimalType = "küçükbaş"
)

// Valid reports whether t is one of the known categories.
func (t AnimalType) Valid() bool {
	return t == AnimalTypeLarge || t == AnimalTypeSmall
}

// Label returns the capitalised category name used in user-facing text.
func (t AnimalType) Label() string {
	switch t {
	case AnimalTypeLarge:
		return "Büyükbaş"
	case AnimalTypeSmall:
		return "Küçükbaş"
	default:
		return string(t)
	}
}

// DeliveryType describes how the animal is handed over to its buyers.
type DeliveryType string

const (
	DeliveryShared    DeliveryType = "Hisseli"
	DeliveryCarcass   DeliveryType = "Karkas"
	DeliveryOnFoot    DeliveryType = "Ayaktan"
	DeliveryPortioned DeliveryType = "Parçalanmış"
)

// MaxLargeShares caps the number of shares a large animal can be split into.
const MaxLargeShares = 7

var (
	largeDeliveryTypes = []DeliveryType{DeliveryShared, DeliveryCarcass, DeliveryOnFoot}
	smallDeliveryTypes = []DeliveryType{DeliveryOnFoot, DeliveryCarcass, DeliveryPortioned}
)

// DeliveryTypesFor lists the delivery types allowed for the category, default first.
func DeliveryTypesFor(t AnimalType) []DeliveryType {
	if t == AnimalTypeSmall {
		return append([]DeliveryType(nil), smallDeliveryTypes...)
	}
	return append([]DeliveryType(nil), largeDeliveryTypes...)
}

// AllowsDelivery reports whether d belongs to the delivery vocabulary of t.
func (t AnimalType) AllowsDelivery(d DeliveryType) bool {
	for _, allowed := range DeliveryTypesFor(t) {
		if allowed == d {
			return true
		}
	}
	return false
}

// Share is one sold slot of an animal.
type Share struct {
	ID              int     `bson:"id" json:"id"`
	CustomerName    string  `bson:"customerName" json:"customerName"`
	CustomerPhone   string  `bson:"customerPhone" json:"customerPhone"`
	CustomerPhone2  string  `bson:"customerPhone2,omitempty" json:"customerPhone2,omitempty"`
	HasProxy        bool    `bson:"hasProxy" json:"hasProxy"`
	PaidAmount      float64 `bson:"paidAmount" json:"paidAmount"`
	PaymentReceiver string  `bson:"paymentReceiver" json:"paymentReceiver"`
	PaymentMethod   string  `bson:"paymentMethod" json:"paymentMethod"`
}

// Animal is a sale record together with its embedded shares.
type Animal struct {
	ID            string       `json:"id"`
	Type          AnimalType   `json:"type"`
	AnimalNumber  int          `json:"animalNumber"`
	Name          string       `json:"name"`
	TotalPrice    float64      `json:"totalPrice"`
	BuyingPrice   *float64     `json:"buyingPrice,omitempty"`
	TotalShares   int          `json:"totalShares"`
	DeliveryType  DeliveryType `json:"deliveryType"`
	SoldShares    int          `json:"soldShares"`
	Shares        []Share      `json:"shares"`
	PhotoURL      string       `json:"photoUrl,omitempty"`
	QueueNo       string       `json:"queueNo,omitempty"`
	SlaughterTime string       `json:"slaughterTime,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	Revision      int64        `json:"revision"`
}

// AnimalInput holds the user-editable fields of an animal after validation.
type AnimalInput struct {
	Type          AnimalType
	AnimalNumber  int
	Name          string
	TotalPrice    float64
	BuyingPrice   *float64
	TotalShares   int
	DeliveryType  DeliveryType
	PhotoURL      string
	QueueNo       string
	SlaughterTime string
	Notes         string
}

// SharePrice is the price of a single share of the animal.
func (a Animal) SharePrice() float64 {
	return SharePrice(a.TotalPrice, a.TotalShares)
}

// RemainingShares is the number of unsold slots.
func (a Animal) RemainingShares() int {
	return a.TotalShares - a.SoldShares
}

// SoldOut reports whether every slot has a buyer.
func (a Animal) SoldOut() bool {
	return a.RemainingShares() == 0
}

// Share returns the share stored in slot id, if any.
func (a Animal) Share(id int) (Share, bool) {
	for _, s := range a.Shares {
		if s.ID == id {
			return s, true
		}
	}
	return Share{}, false
}

// RemainingDebt is what the buyer of s still owes for a share of a.
func (a Animal) RemainingDebt(s Share) float64 {
	return a.SharePrice() - s.PaidAmount
}

// HighestSlot returns the largest assigned share id, 0 when none are assigned.
func (a Animal) HighestSlot() int {
	highest := 0
	for _, s := range a.Shares {
		if s.ID > highest {
			highest = s.ID
		}
	}
	return highest
}

// Slot is a share position of an animal, sold or not.
type Slot struct {
	ID    int    `json:"id"`
	Share *Share `json:"share,omitempty"`
}

// Slots lists every position 1..TotalShares with the share occupying it.
func (a Animal) Slots() []Slot {
	slots := make([]Slot, 0, a.TotalShares)
	for i := 1; i <= a.TotalShares; i++ {
		slot := Slot{ID: i}
		if s, ok := a.Share(i); ok {
			s := s
			slot.Share = &s
		}
		slots = append(slots, slot)
	}
	return slots
}

// Apply copies the editable fields of in onto a.
func (a *Animal) Apply(in AnimalInput) {
	a.Type = in.Type
	a.AnimalNumber = in.AnimalNumber
	a.Name = in.Name
	a.TotalPrice = in.TotalPrice
	a.BuyingPrice = in.BuyingPrice
	a.TotalShares = in.TotalShares
	a.DeliveryType = in.DeliveryType
	a.PhotoURL = in.PhotoURL
	a.QueueNo = in.QueueNo
	a.SlaughterTime = in.SlaughterTime
	a.Notes = in.Notes
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a Animal) Clone() Animal {
	out := a
	if a.BuyingPrice != nil {
		v := *a.BuyingPrice
		out.BuyingPrice = &v
	}
	out.Shares = append([]Share(nil), a.Shares...)
	return out
}

// SortByCreatedDesc orders animals newest first, the order stores publish in.
func SortByCreatedDesc(animals []Animal) {
	sort.SliceStable(animals, func(i, j int) bool {
		return animals[i].CreatedAt.After(animals[j].CreatedAt)
	})
}
