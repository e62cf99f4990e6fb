// Package gservice wraps the Gmail REST API with quota pacing, a circuit
// breaker and per-request deadlines.
package gservice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hal9000y/gmail-agent/internal/auth"
)

const gmailUserID = "me"

// See https://developers.google.com/gmail/api/reference/quota
const (
	quotaMessagesList = 5
	quotaMessagesGet  = 5
	quotaDraftsCreate = 10
	quotaDraftsUpdate = 15
	quotaDraftsGet    = 5
	quotaDraftsSend   = 100

	defaultQuotaPerSecond = 250
	defaultRequestTimeout = 30 * time.Second
)

var (
	// ErrUnauthorized means the token is missing, expired beyond refresh or
	// lacks a scope.
	ErrUnauthorized = errors.New("gmail authorization failed")
	// ErrNotFound means the message or draft does not exist.
	ErrNotFound = errors.New("gmail resource not found")
)

// Options tunes the client. Zero values fall back to defaults.
type Options struct {
	RequestTimeout time.Duration
	QuotaPerSecond int
	BreakerTimeout time.Duration
	// Endpoint overrides the API base URL.
	Endpoint string
}

// GMail is a Gmail API client bound to one authorized user.
type GMail struct {
	tok     *auth.Token
	opts    Options
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

// NewGmail creates a client that authorizes requests with tok.
func NewGmail(tok *auth.Token, opts Options) *GMail {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.QuotaPerSecond <= 0 {
		opts.QuotaPerSecond = defaultQuotaPerSecond
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	// stay under the per-user quota, allow one second worth of burst
	limit := rate.Limit(float64(opts.QuotaPerSecond) * 0.8)
	burst := max(opts.QuotaPerSecond, quotaDraftsSend)

	return &GMail{
		tok:     tok,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gmail-api",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     opts.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.ConsecutiveFailures > 5 || (counts.Requests >= 10 && failureRatio >= 0.6)
			},
			IsSuccessful: countsAsSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// BreakerState reports the circuit breaker state.
func (m *GMail) BreakerState() string {
	return m.cb.State().String()
}

func (m *GMail) ListMessages(ctx context.Context, Q, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	var result *gmail.ListMessagesResponse

	err := m.call(ctx, "messages.List", quotaMessagesList, func(ctx context.Context, svc *gmail.Service) (err error) {
		result, err = svc.Users.Messages.List(gmailUserID).
			Q(Q).
			PageToken(pageToken).
			MaxResults(maxResults).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (m *GMail) GetMessageMetadata(ctx context.Context, msgID string) (*gmail.Message, error) {
	var msg *gmail.Message

	err := m.call(ctx, "messages.Get", quotaMessagesGet, func(ctx context.Context, svc *gmail.Service) (err error) {
		msg, err = svc.Users.Messages.Get(gmailUserID, msgID).
			Format("metadata").
			MetadataHeaders("From", "To", "Cc", "Subject", "Date").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func (m *GMail) GetMessage(ctx context.Context, msgID string) (*gmail.Message, error) {
	var msg *gmail.Message

	err := m.call(ctx, "messages.Get", quotaMessagesGet, func(ctx context.Context, svc *gmail.Service) (err error) {
		msg, err = svc.Users.Messages.Get(gmailUserID, msgID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// CreateDraft stores raw (base64url RFC 822) as a new draft, optionally in
// an existing thread.
func (m *GMail) CreateDraft(ctx context.Context, raw, threadID string) (*gmail.Draft, error) {
	var draft *gmail.Draft

	err := m.call(ctx, "drafts.Create", quotaDraftsCreate, func(ctx context.Context, svc *gmail.Service) (err error) {
		draft, err = svc.Users.Drafts.Create(gmailUserID, &gmail.Draft{
			Message: &gmail.Message{Raw: raw, ThreadId: threadID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return draft, nil
}

// UpdateDraft replaces the content of draftID.
func (m *GMail) UpdateDraft(ctx context.Context, draftID, raw, threadID string) (*gmail.Draft, error) {
	var draft *gmail.Draft

	err := m.call(ctx, "drafts.Update", quotaDraftsUpdate, func(ctx context.Context, svc *gmail.Service) (err error) {
		draft, err = svc.Users.Drafts.Update(gmailUserID, draftID, &gmail.Draft{
			Id:      draftID,
			Message: &gmail.Message{Raw: raw, ThreadId: threadID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return draft, nil
}

func (m *GMail) GetDraft(ctx context.Context, draftID string) (*gmail.Draft, error) {
	var draft *gmail.Draft

	err := m.call(ctx, "drafts.Get", quotaDraftsGet, func(ctx context.Context, svc *gmail.Service) (err error) {
		draft, err = svc.Users.Drafts.Get(gmailUserID, draftID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return draft, nil
}

// SendDraft sends draftID and returns the resulting message.
func (m *GMail) SendDraft(ctx context.Context, draftID string) (*gmail.Message, error) {
	var msg *gmail.Message

	err := m.call(ctx, "drafts.Send", quotaDraftsSend, func(ctx context.Context, svc *gmail.Service) (err error) {
		msg, err = svc.Users.Drafts.Send(gmailUserID, &gmail.Draft{Id: draftID}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func (m *GMail) call(ctx context.Context, op string, units int, fn func(context.Context, *gmail.Service) error) error {
	if err := m.limiter.WaitN(ctx, units); err != nil {
		return fmt.Errorf("limiter.WaitN failed: %w", err)
	}

	svc, err := m.newSvc(ctx)
	if err != nil {
		return fmt.Errorf("newSvc failed: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	_, err = m.cb.Execute(func() (any, error) {
		return nil, fn(reqCtx, svc)
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, classify(err))
	}

	return nil
}

func (m *GMail) newSvc(ctx context.Context) (*gmail.Service, error) {
	clt, err := m.tok.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tok.Client failed: %w", ErrUnauthorized, err)
	}

	opts := []option.ClientOption{option.WithHTTPClient(clt)}
	if m.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(m.opts.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}

// countsAsSuccess keeps client errors from opening the breaker; only
// throttling, server faults and transport failures count against it.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code < http.StatusInternalServerError && apiErr.Code != http.StatusTooManyRequests
	}

	return false
}
