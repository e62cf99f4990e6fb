package tool

import (
	"context"
	"errors"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/gmail-agent/internal/draft"
	"github.com/hal9000y/gmail-agent/internal/message"
	"github.com/hal9000y/gmail-agent/internal/retrieval"
)

type CreateDraftRequest struct {
	To       []string `json:"to" jsonschema:"recipient addresses, e.g. Jane <jane@example.com>"`
	Cc       []string `json:"cc,omitempty" jsonschema:"CC addresses"`
	Bcc      []string `json:"bcc,omitempty" jsonschema:"BCC addresses"`
	Subject  string   `json:"subject" jsonschema:"email subject"`
	Body     string   `json:"body" jsonschema:"plain text body"`
	ThreadID string   `json:"thread_id,omitempty" jsonschema:"thread to reply in"`
}

// UpdateDraftRequest changes only the fields that are set.
type UpdateDraftRequest struct {
	DraftID  string   `json:"draft_id" jsonschema:"ID of the draft to change"`
	To       []string `json:"to,omitempty" jsonschema:"new recipient addresses"`
	Cc       []string `json:"cc,omitempty" jsonschema:"new CC addresses"`
	Bcc      []string `json:"bcc,omitempty" jsonschema:"new BCC addresses"`
	Subject  string   `json:"subject,omitempty" jsonschema:"new subject"`
	Body     string   `json:"body,omitempty" jsonschema:"new plain text body"`
	ThreadID string   `json:"thread_id,omitempty" jsonschema:"new thread to reply in"`
}

type DraftIDRequest struct {
	DraftID string `json:"draft_id" jsonschema:"draft ID"`
}

type DraftResponse struct {
	Draft draft.View `json:"draft" jsonschema:"the stored draft"`
}

type SendDraftResponse struct {
	Sent draft.Sent `json:"sent" jsonschema:"the delivered message"`
}

type draftSvc interface {
	Create(ctx context.Context, f message.EmailFields) (draft.View, error)
	Update(ctx context.Context, req draft.UpdateRequest) (draft.View, error)
	Get(ctx context.Context, draftID string) (draft.View, error)
	Send(ctx context.Context, draftID string) (draft.Sent, error)
}

func NewDrafts(svc draftSvc) *Drafts {
	return &Drafts{svc: svc}
}

// Drafts exposes the draft lifecycle as tools.
type Drafts struct {
	svc draftSvc
}

func (t *Drafts) Create(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CreateDraftRequest,
) (*mcp.CallToolResult, DraftResponse, error) {
	v, err := t.svc.Create(ctx, message.EmailFields{
		To:       input.To,
		Cc:       input.Cc,
		Bcc:      input.Bcc,
		Subject:  input.Subject,
		Body:     input.Body,
		ThreadID: input.ThreadID,
	})
	if err != nil {
		return nil, DraftResponse{}, toolError("create draft", err)
	}

	return nil, DraftResponse{Draft: v}, nil
}

func (t *Drafts) Update(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UpdateDraftRequest,
) (*mcp.CallToolResult, DraftResponse, error) {
	v, err := t.svc.Update(ctx, draft.UpdateRequest{
		DraftID: input.DraftID,
		EmailFields: message.EmailFields{
			To:       input.To,
			Cc:       input.Cc,
			Bcc:      input.Bcc,
			Subject:  input.Subject,
			Body:     input.Body,
			ThreadID: input.ThreadID,
		},
	})
	if err != nil {
		return nil, DraftResponse{}, toolError("update draft", err)
	}

	return nil, DraftResponse{Draft: v}, nil
}

func (t *Drafts) Get(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DraftIDRequest,
) (*mcp.CallToolResult, DraftResponse, error) {
	v, err := t.svc.Get(ctx, input.DraftID)
	if err != nil {
		return nil, DraftResponse{}, toolError("get draft", err)
	}

	return nil, DraftResponse{Draft: v}, nil
}

func (t *Drafts) Send(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DraftIDRequest,
) (*mcp.CallToolResult, SendDraftResponse, error) {
	sent, err := t.svc.Send(ctx, input.DraftID)
	if err != nil {
		return nil, SendDraftResponse{}, toolError("send draft", err)
	}

	return nil, SendDraftResponse{Sent: sent}, nil
}

// toolError keeps validation messages as they are and replaces transport
// failures with their user-facing description.
func toolError(op string, err error) error {
	var verr *draft.ValidationError
	if errors.As(err, &verr) {
		return verr
	}

	log.Printf("%s failed: %v", op, err)

	return errors.New(op + ": " + retrieval.Describe(err))
}
