package message_test

import (
	"bytes"
	"encoding/base64"
	"io"
	"testing"

	gomessage "github.com/emersion/go-message"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func leaf(mimeType, data string, headers ...*gmail.MessagePartHeader) *gmail.MessagePart {
	return &gmail.MessagePart{
		MimeType: mimeType,
		Headers:  headers,
		Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(data))},
	}
}

func multipart(mimeType string, parts ...*gmail.MessagePart) *gmail.MessagePart {
	return &gmail.MessagePart{MimeType: mimeType, Parts: parts}
}

func contentType(v string) *gmail.MessagePartHeader {
	return &gmail.MessagePartHeader{Name: "Content-Type", Value: v}
}

// partFromRaw parses an RFC 822 message the way Gmail exposes it: headers
// verbatim, body with the transfer encoding removed.
func partFromRaw(t *testing.T, raw []byte) *gmail.MessagePart {
	t.Helper()

	ent, err := gomessage.Read(bytes.NewReader(raw))
	require.NoError(t, err)

	var headers []*gmail.MessagePartHeader
	fields := ent.Header.Fields()
	for fields.Next() {
		headers = append(headers, &gmail.MessagePartHeader{Name: fields.Key(), Value: fields.Value()})
	}

	mediaType, _, err := ent.Header.ContentType()
	require.NoError(t, err)

	body, err := io.ReadAll(ent.Body)
	require.NoError(t, err)

	return &gmail.MessagePart{
		MimeType: mediaType,
		Headers:  headers,
		Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString(body)},
	}
}
