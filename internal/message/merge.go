package message

import (
	"cmp"
	"log"
	"mime"
	"strings"

	"google.golang.org/api/gmail/v1"
)

// Merge overlays updates on the fields recovered from an existing draft.
// Non-empty update values win, then existing values, then empty. It never
// fails; validating the result is up to the caller.
func Merge(existing *gmail.Draft, updates EmailFields) EmailFields {
	var current EmailFields
	if existing != nil && existing.Message != nil {
		current = FieldsFromMessage(existing.Message)
	}

	return EmailFields{
		To:       orList(updates.To, current.To),
		Cc:       orList(updates.Cc, current.Cc),
		Bcc:      orList(updates.Bcc, current.Bcc),
		Subject:  cmp.Or(updates.Subject, current.Subject),
		Body:     cmp.Or(updates.Body, current.Body),
		ThreadID: cmp.Or(updates.ThreadID, current.ThreadID),
	}
}

// FieldsFromMessage recovers the editable fields of a stored message. The
// body is the first text/plain leaf with CRLF line endings turned into LF.
func FieldsFromMessage(msg *gmail.Message) EmailFields {
	f := EmailFields{ThreadID: msg.ThreadId}
	if msg.Payload == nil {
		return f
	}

	headers := msg.Payload.Headers
	f.To = FormatAddressList(ParseAddressHeader(HeaderValue(headers, "To")))
	f.Cc = FormatAddressList(ParseAddressHeader(HeaderValue(headers, "Cc")))
	f.Bcc = FormatAddressList(ParseAddressHeader(HeaderValue(headers, "Bcc")))
	f.Subject = decodeHeaderWord(HeaderValue(headers, "Subject"))

	body, err := decodeText(FindPart(msg.Payload, mimeTextPlain))
	if err != nil {
		log.Printf("Draft body could not be decoded: %v", err)
	}
	f.Body = strings.ReplaceAll(body, "\r\n", "\n")

	return f
}

func decodeHeaderWord(v string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(v)
	if err != nil {
		return v
	}

	return decoded
}

func orList(update, existing []string) []string {
	if len(update) > 0 {
		return update
	}

	return existing
}
