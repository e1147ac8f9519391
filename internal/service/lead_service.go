package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
)

const maxMessageLength = 5000

type LeadService struct {
	inquiries collection[domain.Inquiry]
	logger    *slog.Logger
	now       func() time.Time
}

func NewLeadService(inquiries collection[domain.Inquiry], logger *slog.Logger) *LeadService {
	return &LeadService{inquiries: inquiries, logger: logger, now: time.Now}
}

type InquiryInput struct {
	Name       string               `json:"name"`
	Email      string               `json:"email"`
	Phone      string               `json:"phone"`
	Message    string               `json:"message"`
	PropertyID string               `json:"propertyId"`
	Source     domain.InquirySource `json:"source"`
}

// Submit records a public inquiry. It succeeds even when only the local
// store accepted it; Written says which.
func (s *LeadService) Submit(ctx context.Context, in InquiryInput) (domain.Inquiry, reconcile.Written, error) {
	inq, err := s.validate(in)
	if err != nil {
		return domain.Inquiry{}, reconcile.Written{}, err
	}

	created, w, err := s.inquiries.Create(ctx, inq)
	if err != nil {
		return domain.Inquiry{}, reconcile.Written{}, fmt.Errorf("failed to save inquiry: %w", err)
	}
	s.logger.Info("inquiry received", "inquiry_id", created.ID, "source", created.Source, "destination", w.Destination)
	return created, w, nil
}

func (s *LeadService) validate(in InquiryInput) (domain.Inquiry, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	message := strings.TrimSpace(in.Message)

	switch {
	case name == "":
		return domain.Inquiry{}, invalid("name is required")
	case email == "":
		return domain.Inquiry{}, invalid("email is required")
	case message == "":
		return domain.Inquiry{}, invalid("message is required")
	case len(message) > maxMessageLength:
		return domain.Inquiry{}, invalid("message is longer than %d characters", maxMessageLength)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Inquiry{}, invalid("email %q is not valid", email)
	}

	source := in.Source
	switch source {
	case "":
		source = domain.SourceForm
	case domain.SourceForm, domain.SourceChat, domain.SourceViewing:
	default:
		return domain.Inquiry{}, invalid("unknown source %q", source)
	}

	now := s.now().UTC()
	return domain.Inquiry{
		Name:       name,
		Email:      email,
		Phone:      strings.TrimSpace(in.Phone),
		Message:    message,
		PropertyID: strings.TrimSpace(in.PropertyID),
		Source:     source,
		Status:     domain.InquiryNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// List returns inquiries with the given status, or all when status is empty.
func (s *LeadService) List(status domain.InquiryStatus) []domain.Inquiry {
	out := make([]domain.Inquiry, 0)
	for _, inq := range s.inquiries.Items() {
		if status == "" || inq.Status == status {
			out = append(out, inq)
		}
	}
	return out
}

func (s *LeadService) Get(id string) (domain.Inquiry, error) {
	inq, ok := s.inquiries.Get(id)
	if !ok {
		return domain.Inquiry{}, fmt.Errorf("inquiry %s: %w", id, ErrNotFound)
	}
	return inq, nil
}

// InquiryUpdate changes the fields that are set.
type InquiryUpdate struct {
	Status *domain.InquiryStatus `json:"status"`
	Notes  *string               `json:"notes"`
}

func (s *LeadService) Update(ctx context.Context, id string, upd InquiryUpdate) (domain.Inquiry, reconcile.Written, error) {
	inq, ok := s.inquiries.Get(id)
	if !ok {
		return domain.Inquiry{}, reconcile.Written{}, fmt.Errorf("inquiry %s: %w", id, ErrNotFound)
	}

	if upd.Status != nil {
		if !upd.Status.Valid() {
			return domain.Inquiry{}, reconcile.Written{}, invalid("unknown status %q", *upd.Status)
		}
		inq.Status = *upd.Status
	}
	if upd.Notes != nil {
		inq.Notes = strings.TrimSpace(*upd.Notes)
	}
	inq.UpdatedAt = s.now().UTC()

	w, err := s.inquiries.Update(ctx, inq)
	if err != nil {
		return domain.Inquiry{}, reconcile.Written{}, err
	}
	updated, _ := s.inquiries.Get(id)
	return updated, w, nil
}

// Delete drops the inquiry from the admin list. Remote rows are kept.
func (s *LeadService) Delete(ctx context.Context, id string) error {
	return s.inquiries.Delete(ctx, id)
}

// CountByProperty counts inquiries per linked property id.
func (s *LeadService) CountByProperty() map[string]int {
	counts := make(map[string]int)
	for _, inq := range s.inquiries.Items() {
		if inq.PropertyID != "" {
			counts[inq.PropertyID]++
		}
	}
	return counts
}
