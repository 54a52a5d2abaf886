package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const maxPhoneDigits = 10

var (
	namePattern  = regexp.MustCompile(`^[a-zA-ZğüşıöçĞÜŞİÖÇ ]*$`)
	phonePattern = regexp.MustCompile(`^[0-9]*$`)
)

// PaymentOptions are the fixed choices offered for who took a payment and how.
type PaymentOptions struct {
	Receivers []string
	Methods   []string
}

// DefaultPaymentOptions mirrors the seller team of the season.
func DefaultPaymentOptions() PaymentOptions {
	return PaymentOptions{
		Receivers: []string{"Salih", "Kadir", "Hacı", "Erdem"},
		Methods:   []string{"Nakit", "Kendi IBAN'ıma"},
	}
}

// ShareDraft is the buyer form of a share slot before validation.
type ShareDraft struct {
	CustomerName    string  `json:"customerName"`
	CustomerPhone   string  `json:"customerPhone"`
	CustomerPhone2  string  `json:"customerPhone2,omitempty"`
	HasProxy        bool    `json:"hasProxy"`
	PaidAmount      float64 `json:"paidAmount"`
	PaymentReceiver string  `json:"paymentReceiver,omitempty"`
	PaymentMethod   string  `json:"paymentMethod,omitempty"`
}

// ShareDraftFrom pre-fills the buyer form from an assigned share.
func ShareDraftFrom(s Share) ShareDraft {
	return ShareDraft{
		CustomerName:    s.CustomerName,
		CustomerPhone:   s.CustomerPhone,
		CustomerPhone2:  s.CustomerPhone2,
		HasProxy:        s.HasProxy,
		PaidAmount:      s.PaidAmount,
		PaymentReceiver: s.PaymentReceiver,
		PaymentMethod:   s.PaymentMethod,
	}
}

// ValidName reports whether name is made of letters (Turkish included) and spaces.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ValidPhone reports whether phone contains only digits.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Validate checks the draft against the animal it is written to and returns
// the share to store in slot.
func (d ShareDraft) Validate(a Animal, slot int, opts PaymentOptions) (Share, error) {
	if slot < 1 || slot > a.TotalShares {
		return Share{}, invalid("id", CodeInvalidShareSlot,
			fmt.Sprintf("Hisse numarası 1 ile %d arasında olmalıdır", a.TotalShares))
	}

	name := strings.TrimSpace(d.CustomerName)
	if name == "" || !ValidName(d.CustomerName) {
		return Share{}, invalid("customerName", CodeInvalidCustomerName, "İsim soyisim sadece harflerden oluşmalıdır")
	}

	if err := checkPhone("customerPhone", d.CustomerPhone, true); err != nil {
		return Share{}, err
	}
	if err := checkPhone("customerPhone2", d.CustomerPhone2, false); err != nil {
		return Share{}, err
	}

	if d.PaidAmount < 0 {
		return Share{}, invalid("paidAmount", CodeNegativeAmount, "Ödenen miktar negatif olamaz")
	}
	if d.PaidAmount > a.SharePrice() {
		return Share{}, invalid("paidAmount", CodeOverpayment, "Ödenen miktar, hisse bedelinden büyük olamaz")
	}

	receiver, err := pickOption("paymentReceiver", d.PaymentReceiver, opts.Receivers)
	if err != nil {
		return Share{}, err
	}
	method, err := pickOption("paymentMethod", d.PaymentMethod, opts.Methods)
	if err != nil {
		return Share{}, err
	}

	return Share{
		ID:              slot,
		CustomerName:    name,
		CustomerPhone:   d.CustomerPhone,
		CustomerPhone2:  d.CustomerPhone2,
		HasProxy:        d.HasProxy,
		PaidAmount:      d.PaidAmount,
		PaymentReceiver: receiver,
		PaymentMethod:   method,
	}, nil
}

func checkPhone(field, phone string, required bool) error {
	if phone == "" {
		if required {
			return invalid(field, CodeInvalidPhone, "Telefon numarası girilmesi zorunludur")
		}
		return nil
	}
	if !ValidPhone(phone) || len(phone) > maxPhoneDigits {
		return invalid(field, CodeInvalidPhone, fmt.Sprintf("Telefon numarası en fazla %d rakamdan oluşmalıdır", maxPhoneDigits))
	}
	return nil
}

func pickOption(field, value string, options []string) (string, error) {
	value = strings.TrimSpace(value)
	if len(options) == 0 {
		return value, nil
	}
	if value == "" {
		return options[0], nil
	}
	for _, opt := range options {
		if opt == value {
			return value, nil
		}
	}
	return "", invalid(field, CodeInvalidPaymentOption, fmt.Sprintf("Geçersiz seçim: %s", value))
}

// UpsertShare returns a new share list with s stored in its slot, replacing
// any previous occupant, ordered by slot id.
func UpsertShare(shares []Share, s Share) []Share {
	out := make([]Share, 0, len(shares)+1)
	for _, existing := range shares {
		if existing.ID != s.ID {
			out = append(out, existing)
		}
	}
	out = append(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveShare returns a new share list without slot id and whether it was present.
func RemoveShare(shares []Share, id int) ([]Share, bool) {
	out := make([]Share, 0, len(shares))
	removed := false
	for _, existing := range shares {
		if existing.ID == id {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out, removed
}
