package assistant

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Handoff builds links that forward a visitor's message to a human agent.
type Handoff struct {
	whatsApp string
	email    string
}

type Links struct {
	WhatsApp string `json:"whatsapp,omitempty"`
	Email    string `json:"email,omitempty"`
}

// NewHandoff keeps only the digits of the WhatsApp number.
func NewHandoff(whatsAppNumber, email string) *Handoff {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, whatsAppNumber)
	return &Handoff{whatsApp: digits, email: strings.TrimSpace(email)}
}

func (h *Handoff) Links(visitorName, message string) Links {
	body := message
	if visitorName != "" {
		body = fmt.Sprintf("Hi, this is %s. %s", visitorName, message)
	}

	var links Links
	if h.whatsApp != "" {
		links.WhatsApp = "https://wa.me/" + h.whatsApp + "?text=" + escape(body)
	}
	if h.email != "" {
		links.Email = "mailto:" + h.email + "?subject=" + escape("Website enquiry") + "&body=" + escape(body)
	}
	return links
}

// escape percent-encodes spaces too; mail and WhatsApp clients do not
// decode "+".
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
