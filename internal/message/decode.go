// Package message reconstructs readable text from Gmail message part trees
// and builds outgoing wire messages.
package message

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/format"
)

const (
	// DefaultMaxDepth caps how deep a part tree is walked.
	DefaultMaxDepth = 32

	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

type htmlConverter interface {
	HTML2Text(raw []byte) (string, error)
}

// Metadata is the header-level view of a fetched message.
type Metadata struct {
	ID       string    `json:"id" jsonschema:"message ID"`
	ThreadID string    `json:"thread_id" jsonschema:"thread ID"`
	From     []Address `json:"from" jsonschema:"senders"`
	To       []Address `json:"to,omitempty" jsonschema:"recipients"`
	Cc       []Address `json:"cc,omitempty" jsonschema:"CC recipients"`
	Subject  string    `json:"subject" jsonschema:"email subject"`
	Date     string    `json:"date" jsonschema:"Date header"`
	Snippet  string    `json:"snippet,omitempty" jsonschema:"message preview"`
	Labels   []string  `json:"labels,omitempty" jsonschema:"label IDs"`
}

// Decoded pairs message metadata with its cleaned body.
type Decoded struct {
	Metadata
	Body string
}

// ParseMetadata reads the headers of msg. It tolerates a missing payload.
func ParseMetadata(msg *gmail.Message) Metadata {
	md := Metadata{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
	}
	if msg.Payload == nil {
		return md
	}

	headers := msg.Payload.Headers
	md.From = ParseAddressHeader(HeaderValue(headers, "From"))
	md.To = ParseAddressHeader(HeaderValue(headers, "To"))
	md.Cc = ParseAddressHeader(HeaderValue(headers, "Cc"))
	md.Subject = HeaderValue(headers, "Subject")
	md.Date = HeaderValue(headers, "Date")

	return md
}

// Decoder turns part trees into normalized plain text.
type Decoder struct {
	conv            htmlConverter
	preferPlainText bool
	maxDepth        int
}

// NewDecoder creates a Decoder. With preferPlainText set, a text/plain
// alternative wins over text/html.
func NewDecoder(conv htmlConverter, preferPlainText bool) *Decoder {
	return &Decoder{
		conv:            conv,
		preferPlainText: preferPlainText,
		maxDepth:        DefaultMaxDepth,
	}
}

// DecodeMessage extracts metadata and the cleaned body of msg.
func (d *Decoder) DecodeMessage(msg *gmail.Message) Decoded {
	return Decoded{
		Metadata: ParseMetadata(msg),
		Body:     d.Decode(msg.Payload),
	}
}

// Decode returns the readable text of a part tree. It never fails: parts that
// cannot be decoded contribute nothing.
func (d *Decoder) Decode(part *gmail.MessagePart) string {
	return format.Normalize(d.decodePart(part, 0))
}

func (d *Decoder) decodePart(part *gmail.MessagePart, depth int) string {
	if part == nil {
		return ""
	}
	if depth > d.maxDepth {
		log.Printf("Part %q is nested deeper than %d levels, skipping", part.PartId, d.maxDepth)
		return ""
	}

	if !isMultipart(part.MimeType) || len(part.Parts) == 0 {
		return d.decodeLeaf(part)
	}

	if d.preferPlainText {
		if text := d.decodeLeaf(findPart(part, mimeTextPlain, depth, d.maxDepth)); text != "" {
			return text
		}
	}
	if text := d.decodeLeaf(findPart(part, mimeTextHTML, depth, d.maxDepth)); text != "" {
		return text
	}

	texts := make([]string, 0, len(part.Parts))
	for _, child := range part.Parts {
		texts = append(texts, d.decodePart(child, depth+1))
	}

	return strings.Join(texts, "\n")
}

func (d *Decoder) decodeLeaf(part *gmail.MessagePart) string {
	text, err := decodeText(part)
	if err != nil {
		log.Println(fmt.Errorf("decodeText failed: %w", err))
		return ""
	}
	if text == "" || !strings.EqualFold(part.MimeType, mimeTextHTML) {
		return text
	}

	converted, err := d.conv.HTML2Text([]byte(text))
	if err != nil {
		log.Println(fmt.Errorf("part %q: conv.HTML2Text failed: %w", part.PartId, err))
		return ""
	}

	return converted
}

// decodeText returns the UTF-8 content of a leaf, or "" when it has no data.
func decodeText(part *gmail.MessagePart) (string, error) {
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return "", nil
	}

	raw, err := DecodeBase64URL(part.Body.Data)
	if err != nil {
		return "", fmt.Errorf("part %q: %w", part.PartId, err)
	}

	return DecodeCharset(raw, ResolveCharset(part.Headers)), nil
}

// FindPart returns the first part with mimeType and body data, searching
// depth-first in document order. Only multipart containers are descended.
func FindPart(part *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	return findPart(part, mimeType, 0, DefaultMaxDepth)
}

func findPart(part *gmail.MessagePart, mimeType string, depth, maxDepth int) *gmail.MessagePart {
	if part == nil || depth > maxDepth {
		return nil
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return part
	}
	if !isMultipart(part.MimeType) {
		return nil
	}

	for _, child := range part.Parts {
		if found := findPart(child, mimeType, depth+1, maxDepth); found != nil {
			return found
		}
	}

	return nil
}

// DecodeBase64URL decodes Gmail body data, padded or not.
func DecodeBase64URL(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}

	decoded, err = base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	return decoded, nil
}

func isMultipart(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "multipart/")
}
