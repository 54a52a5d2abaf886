package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	defaultCustomerName = "Değerli Müşterimiz"
	deepLinkBase        = "https://wa.me/"
)

var nonDigits = regexp.MustCompile(`\D`)

// OutboundMessageRequest asks for a plain text WhatsApp message to be sent.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// BuyerMessage is a ready-to-send reminder for the buyer of a share.
type BuyerMessage struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
	Link  string `json:"link"`
}

// MessageSettings holds the deployment specific parts of buyer messages.
type MessageSettings struct {
	CountryCode string
	LocationURL string
}

// ComposeBuyerMessage writes the reminder sent to a buyer: slaughter time,
// any remaining debt and where to come.
func ComposeBuyerMessage(a Animal, s Share, settings MessageSettings) string {
	name := strings.TrimSpace(s.CustomerName)
	if name == "" {
		name = defaultCustomerName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Merhaba %s,\n\n", name)
	if a.SlaughterTime != "" {
		fmt.Fprintf(&b, "Kurbanınız %s civarında kesilecektir.\n", a.SlaughterTime)
	}
	if debt := a.RemainingDebt(s); debt > 0 {
		fmt.Fprintf(&b, "Kalan borcunuz: %s TL\n\n", FormatAmount(debt))
		b.WriteString("Ödeme için IBAN bilgisi isteyebilir veya nakit vermek için bizimle iletişime geçebilirsiniz.\n\n")
	}
	if settings.LocationURL != "" {
		fmt.Fprintf(&b, "Kesim yerimiz: %s\n\n", settings.LocationURL)
	}
	b.WriteString("Hayırlı bayramlar 🌙")
	return b.String()
}

// InternationalNumber strips formatting from phone and prefixes the country code.
func InternationalNumber(phone, countryCode string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if digits == "" {
		return ""
	}
	return nonDigits.ReplaceAllString(countryCode, "") + digits
}

// DeepLink builds a wa.me link that opens a chat with text pre-filled.
func DeepLink(internationalPhone, text string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return deepLinkBase + internationalPhone + "?text=" + escaped
}

// BuildBuyerMessage composes the reminder for one of the buyer's phones.
// secondary selects customerPhone2.
func BuildBuyerMessage(a Animal, s Share, secondary bool, settings MessageSettings) (BuyerMessage, bool) {
	phone := s.CustomerPhone
	if secondary {
		phone = s.CustomerPhone2
	}
	intl := InternationalNumber(phone, settings.CountryCode)
	if intl == "" {
		return BuyerMessage{}, false
	}
	text := ComposeBuyerMessage(a, s, settings)
	return BuyerMessage{Phone: intl, Text: text, Link: DeepLink(intl, text)}, true
}
