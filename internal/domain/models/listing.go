package models

import (
	"sort"
	"strings"
)

// Filter selects which categories the list view shows.
type Filter string

const (
	FilterAll   Filter = "ALL"
	FilterLarge Filter = "LARGE"
	FilterSmall Filter = "SMALL"
)

// ParseFilter maps a query value to a Filter, defaulting to FilterAll.
func ParseFilter(raw string) (Filter, bool) {
	switch Filter(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, true
	case FilterLarge:
		return FilterLarge, true
	case FilterSmall:
		return FilterSmall, true
	default:
		return FilterAll, false
	}
}

func (f Filter) matches(a Animal) bool {
	switch f {
	case FilterLarge:
		return a.Type == AnimalTypeLarge
	case FilterSmall:
		return a.Type == AnimalTypeSmall
	default:
		return true
	}
}

// ListView filters a copy of animals and orders it for display: animals with
// shares left come first, large before small when both are shown, then the
// most expensive share first. The input slice is left untouched.
func ListView(animals []Animal, filter Filter) []Animal {
	out := make([]Animal, 0, len(animals))
	for _, a := range animals {
		if filter.matches(a) {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SoldOut() != b.SoldOut() {
			return !a.SoldOut()
		}
		if filter == FilterAll && a.Type != b.Type {
			return a.Type == AnimalTypeLarge
		}
		return a.SharePrice() > b.SharePrice()
	})
	return out
}

// CategoryStats summarises one animal category.
type CategoryStats struct {
	Sold            int `json:"sold"`
	Remaining       int `json:"remaining"`
	RemainingShares int `json:"remainingShares"`
}

// TotalStats combines both categories.
type TotalStats struct {
	RemainingAnimals int `json:"remainingAnimals"`
	RemainingShares  int `json:"remainingShares"`
}

// Stats is the dashboard summary. It always covers the whole inventory,
// whatever filter the list uses.
type Stats struct {
	Large CategoryStats `json:"large"`
	Small CategoryStats `json:"small"`
	Total TotalStats    `json:"total"`
}

// ComputeStats derives the dashboard summary from the full animal set.
func ComputeStats(animals []Animal) Stats {
	var stats Stats
	for _, a := range animals {
		var cat *CategoryStats
		switch a.Type {
		case AnimalTypeLarge:
			cat = &stats.Large
		case AnimalTypeSmall:
			cat = &stats.Small
		default:
			continue
		}
		if a.SoldOut() {
			cat.Sold++
		} else {
			cat.Remaining++
		}
		cat.RemainingShares += a.RemainingShares()
	}
	stats.Total = TotalStats{
		RemainingAnimals: stats.Large.Remaining + stats.Small.Remaining,
		RemainingShares:  stats.Large.RemainingShares + stats.Small.RemainingShares,
	}
	return stats
}

// NumberTaken reports whether another animal of the same type already uses
// number. The animal with id excludeID is ignored so an edit does not
// conflict with itself.
func NumberTaken(animals []Animal, number int, t AnimalType, excludeID string) bool {
	for _, a := range animals {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.Type == t && a.AnimalNumber == number {
			return true
		}
	}
	return false
}

type numberKey struct {
	Type   AnimalType
	Number int
}

// NumberIndex maps (type, animal number) to the ids using it. It answers the
// same question as NumberTaken without a scan and must be rebuilt or updated
// with every inventory change.
type NumberIndex map[numberKey][]string

// BuildNumberIndex indexes animals by category and number.
func BuildNumberIndex(animals []Animal) NumberIndex {
	idx := make(NumberIndex, len(animals))
	for _, a := range animals {
		key := numberKey{Type: a.Type, Number: a.AnimalNumber}
		idx[key] = append(idx[key], a.ID)
	}
	return idx
}

// Taken has the semantics of NumberTaken.
func (idx NumberIndex) Taken(number int, t AnimalType, excludeID string) bool {
	for _, id := range idx[numberKey{Type: t, Number: number}] {
		if excludeID == "" || id != excludeID {
			return true
		}
	}
	return false
}

// LastAnimalNumber returns the highest number used in category t, 0 if none.
func LastAnimalNumber(animals []Animal, t AnimalType) int {
	last := 0
	for _, a := range animals {
		if a.Type == t && a.AnimalNumber > last {
			last = a.AnimalNumber
		}
	}
	return last
}
