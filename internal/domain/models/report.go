package models

import "time"

// Ledger summarises money across all sold shares.
type Ledger struct {
	Expected     float64 `bson:"expected" json:"expected"`
	Paid         float64 `bson:"paid" json:"paid"`
	Outstanding  float64 `bson:"outstanding" json:"outstanding"`
	UnpaidBuyers int     `bson:"unpaid_buyers" json:"unpaidBuyers"`
	BuyingCost   float64 `bson:"buying_cost" json:"buyingCost"`
}

// ComputeLedger totals share prices, payments and open debts.
func ComputeLedger(animals []Animal) Ledger {
	var l Ledger
	for _, a := range animals {
		if a.BuyingPrice != nil {
			l.BuyingCost += *a.BuyingPrice
		}
		price := a.SharePrice()
		for _, s := range a.Shares {
			l.Expected += price
			l.Paid += s.PaidAmount
			if debt := price - s.PaidAmount; debt > 0 {
				l.Outstanding += debt
				l.UnpaidBuyers++
			}
		}
	}
	return l
}

// DailyReport is the end-of-day snapshot kept for the season history.
type DailyReport struct {
	Date      time.Time `bson:"date" json:"date"`
	Animals   int       `bson:"animals" json:"animals"`
	Stats     Stats     `bson:"stats" json:"stats"`
	Ledger    Ledger    `bson:"ledger" json:"ledger"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
