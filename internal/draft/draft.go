// Package draft creates, edits, reads and sends Gmail drafts. Input is
// validated before any call reaches Gmail.
package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/message"
)

type provider interface {
	CreateDraft(ctx context.Context, raw, threadID string) (*gmail.Draft, error)
	UpdateDraft(ctx context.Context, draftID, raw, threadID string) (*gmail.Draft, error)
	GetDraft(ctx context.Context, draftID string) (*gmail.Draft, error)
	SendDraft(ctx context.Context, draftID string) (*gmail.Message, error)
}

// ValidationError reports unusable input. Nothing was sent to Gmail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// View is a draft as callers see it.
type View struct {
	ID        string   `json:"id" jsonschema:"draft ID"`
	MessageID string   `json:"message_id,omitempty" jsonschema:"ID of the draft message"`
	ThreadID  string   `json:"thread_id,omitempty" jsonschema:"thread the draft replies to"`
	To        []string `json:"to" jsonschema:"recipients"`
	Cc        []string `json:"cc,omitempty" jsonschema:"CC recipients"`
	Bcc       []string `json:"bcc,omitempty" jsonschema:"BCC recipients"`
	Subject   string   `json:"subject" jsonschema:"email subject"`
	Body      string   `json:"body" jsonschema:"plain text body"`
}

// Sent describes a delivered draft.
type Sent struct {
	MessageID string   `json:"message_id" jsonschema:"ID of the sent message"`
	ThreadID  string   `json:"thread_id" jsonschema:"thread of the sent message"`
	Labels    []string `json:"labels,omitempty" jsonschema:"labels of the sent message"`
}

// UpdateRequest names a draft and the fields to change. Empty fields keep
// their current value.
type UpdateRequest struct {
	DraftID string
	message.EmailFields
}

type Service struct {
	svc provider
}

func NewService(svc provider) *Service {
	return &Service{svc: svc}
}

// Create validates f and stores it as a new draft.
func (s *Service) Create(ctx context.Context, f message.EmailFields) (View, error) {
	if err := Validate(f); err != nil {
		return View{}, err
	}

	d, err := s.svc.CreateDraft(ctx, message.Compose(f), f.ThreadID)
	if err != nil {
		return View{}, fmt.Errorf("svc.CreateDraft failed: %w", err)
	}

	return viewOf(d, f), nil
}

// Update merges req into the stored draft and replaces it. The merged
// message must still be complete.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (View, error) {
	if err := validateID(req.DraftID); err != nil {
		return View{}, err
	}
	if err := validateAddresses("to", req.To); err != nil {
		return View{}, err
	}
	if err := validateAddresses("cc", req.Cc); err != nil {
		return View{}, err
	}
	if err := validateAddresses("bcc", req.Bcc); err != nil {
		return View{}, err
	}

	existing, err := s.svc.GetDraft(ctx, req.DraftID)
	if err != nil {
		return View{}, fmt.Errorf("svc.GetDraft failed: %w", err)
	}

	merged := message.Merge(existing, req.EmailFields)
	if err := Validate(merged); err != nil {
		return View{}, err
	}

	d, err := s.svc.UpdateDraft(ctx, req.DraftID, message.Compose(merged), merged.ThreadID)
	if err != nil {
		return View{}, fmt.Errorf("svc.UpdateDraft failed: %w", err)
	}

	return viewOf(d, merged), nil
}

// Get returns the stored draft.
func (s *Service) Get(ctx context.Context, draftID string) (View, error) {
	if err := validateID(draftID); err != nil {
		return View{}, err
	}

	d, err := s.svc.GetDraft(ctx, draftID)
	if err != nil {
		return View{}, fmt.Errorf("svc.GetDraft failed: %w", err)
	}

	var f message.EmailFields
	if d.Message != nil {
		f = message.FieldsFromMessage(d.Message)
	}

	return viewOf(d, f), nil
}

// Send delivers the draft. The draft no longer exists afterwards.
func (s *Service) Send(ctx context.Context, draftID string) (Sent, error) {
	if err := validateID(draftID); err != nil {
		return Sent{}, err
	}

	msg, err := s.svc.SendDraft(ctx, draftID)
	if err != nil {
		return Sent{}, fmt.Errorf("svc.SendDraft failed: %w", err)
	}

	return Sent{MessageID: msg.Id, ThreadID: msg.ThreadId, Labels: msg.LabelIds}, nil
}

// Validate checks that f is a sendable message.
func Validate(f message.EmailFields) error {
	if len(f.To) == 0 {
		return &ValidationError{Field: "to", Reason: "at least one recipient is required"}
	}
	if err := validateAddresses("to", f.To); err != nil {
		return err
	}
	if err := validateAddresses("cc", f.Cc); err != nil {
		return err
	}
	if err := validateAddresses("bcc", f.Bcc); err != nil {
		return err
	}
	if strings.TrimSpace(f.Subject) == "" {
		return &ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	if strings.TrimSpace(f.Body) == "" {
		return &ValidationError{Field: "body", Reason: "must not be empty"}
	}

	return nil
}

func validateAddresses(field string, addrs []string) error {
	for _, a := range addrs {
		if _, err := mail.ParseAddress(a); err != nil {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not an email address", a)}
		}
	}

	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "draft_id", Reason: "must not be empty"}
	}

	return nil
}

func viewOf(d *gmail.Draft, f message.EmailFields) View {
	v := View{
		ID:       d.Id,
		ThreadID: f.ThreadID,
		To:       f.To,
		Cc:       f.Cc,
		Bcc:      f.Bcc,
		Subject:  f.Subject,
		Body:     f.Body,
	}
	if v.To == nil {
		v.To = []string{}
	}
	if d.Message != nil {
		v.MessageID = d.Message.Id
		if d.Message.ThreadId != "" {
			v.ThreadID = d.Message.ThreadId
		}
	}

	return v
}
