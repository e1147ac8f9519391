// Package assistant produces bot replies for the website chat widget.
package assistant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
)

// Responder answers a visitor message given the conversation so far.
type Responder interface {
	Reply(ctx context.Context, history []domain.ChatMessage, text string) (string, error)
}

type rule struct {
	keywords []string
	reply    string
}

// Canned matches keywords against the lower-cased message.
type Canned struct {
	rules    []rule
	fallback string
}

func NewCanned() *Canned {
	return &Canned{
		rules: []rule{
			{[]string{"hello", "hi ", "hey", "jambo"}, "Hello! Welcome to Krugerr Brendt Real Estate. Are you looking to buy, rent or invest?"},
			{[]string{"price", "cost", "how much", "budget"}, "Our listings range from apartments in Kilimani to villas in Karen. Tell me your budget and preferred area and I will suggest matching properties."},
			{[]string{"rent", "lease"}, "We have furnished and unfurnished rentals across Nairobi. Which neighbourhood and how many bedrooms do you need?"},
			{[]string{"buy", "purchase", "sale"}, "Great! Browse our properties for sale, or share your requirements and an agent will shortlist homes for you."},
			{[]string{"project", "off-plan", "off plan", "development"}, "Our current developments include off-plan apartments and villa estates. Ask about a project by name for its completion date and unit prices."},
			{[]string{"viewing", "visit", "tour", "see the"}, "We would be happy to arrange a viewing. Please share your name, phone number and preferred date."},
			{[]string{"contact", "agent", "call", "whatsapp", "email", "human"}, "You can reach an agent directly on WhatsApp or by email. Use the contact buttons below and we will respond shortly."},
			{[]string{"location", "where", "office"}, "Our office is in Westlands, Nairobi. We cover Nairobi, Kiambu and the coast."},
		},
		fallback: "Thanks for your message! An agent will get back to you shortly. Meanwhile, feel free to browse our listings.",
	}
}

func (c *Canned) Reply(_ context.Context, _ []domain.ChatMessage, text string) (string, error) {
	lower := " " + strings.ToLower(text) + " "
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.reply, nil
			}
		}
	}
	return c.fallback, nil
}

// Fallback asks primary first and answers from secondary when it fails.
type Fallback struct {
	primary   Responder
	secondary Responder
	logger    *slog.Logger
}

func NewFallback(primary, secondary Responder, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Reply(ctx context.Context, history []domain.ChatMessage, text string) (string, error) {
	reply, err := f.primary.Reply(ctx, history, text)
	if err == nil && strings.TrimSpace(reply) != "" {
		return reply, nil
	}
	if err != nil {
		f.logger.Warn("assistant reply failed, using canned reply", "error", err)
	}
	return f.secondary.Reply(ctx, history, text)
}
