package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/message"
)

// GetMessagesRequest contains message IDs to retrieve.
type GetMessagesRequest struct {
	MessageIDs []string `json:"message_ids" jsonschema:"array of message IDs to retrieve"`
}

// GetMessagesResponse contains full message contents.
type GetMessagesResponse struct {
	Messages []MessageContent `json:"messages" jsonschema:"array of full message contents"`
}

// MessageContent is a message with its decoded body and attachment list.
type MessageContent struct {
	Summary     MessageSummary `json:"summary" jsonschema:"summary"`
	BodyText    string         `json:"body_text,omitempty" jsonschema:"plain text body with markup, links and control characters removed"`
	Attachments []Attachment   `json:"attachments,omitempty" jsonschema:"list of attachments"`
}

// Attachment represents email attachment metadata.
type Attachment struct {
	ID       string `json:"id" jsonschema:"attachment ID"`
	Filename string `json:"filename" jsonschema:"original filename"`
	MimeType string `json:"mime_type" jsonschema:"MIME type"`
	Size     int64  `json:"size" jsonschema:"size in bytes"`
}

type getMessagesSvc interface {
	GetMessage(ctx context.Context, msgID string) (*gmail.Message, error)
}

type messageDecoder interface {
	DecodeMessage(msg *gmail.Message) message.Decoded
}

// NewGetMessages creates a new GetMessages tool.
func NewGetMessages(svc getMessagesSvc, dec messageDecoder) *GetMessages {
	return &GetMessages{
		svc: svc,
		dec: dec,
	}
}

// GetMessages retrieves full message content with decoded bodies.
type GetMessages struct {
	svc getMessagesSvc
	dec messageDecoder
}

// GetMessages retrieves complete messages by their IDs.
func (t *GetMessages) GetMessages(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetMessagesRequest,
) (*mcp.CallToolResult, GetMessagesResponse, error) {
	messages := make([]MessageContent, 0, len(input.MessageIDs))

	for _, msgID := range input.MessageIDs {
		msg, err := t.svc.GetMessage(ctx, msgID)
		if err != nil {
			return nil, GetMessagesResponse{}, fmt.Errorf("get message %s failed: %w", msgID, err)
		}

		decoded := t.dec.DecodeMessage(msg)
		content := MessageContent{
			Summary:  summaryOf(decoded.Metadata),
			BodyText: decoded.Body,
		}
		if msg.Payload != nil {
			content.Attachments = extractAttachments(msg.Payload, 0)
		}

		messages = append(messages, content)
	}

	return nil, GetMessagesResponse{
		Messages: messages,
	}, nil
}

func extractAttachments(part *gmail.MessagePart, depth int) []Attachment {
	if depth > message.DefaultMaxDepth {
		return nil
	}

	var attachments []Attachment
	if part.Body != nil && part.Body.AttachmentId != "" {
		attachments = append(attachments, Attachment{
			ID:       part.Body.AttachmentId,
			Filename: part.Filename,
			MimeType: part.MimeType,
			Size:     part.Body.Size,
		})
	}

	for _, child := range part.Parts {
		attachments = append(attachments, extractAttachments(child, depth+1)...)
	}

	return attachments
}
