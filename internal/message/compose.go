package message

import (
	"bytes"
	"encoding/base64"
	"mime"
	"mime/quotedprintable"
	"strings"
)

// EmailFields are the user-editable parts of a draft.
type EmailFields struct {
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	Body     string
	ThreadID string
}

var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

// Compose returns the unpadded base64url encoding of ComposeRaw, the form
// Gmail expects in Message.Raw.
func Compose(f EmailFields) string {
	return base64.RawURLEncoding.EncodeToString(ComposeRaw(f))
}

// ComposeRaw renders a single-part UTF-8 text message with a
// quoted-printable body and CRLF line endings. Cc and Bcc are only written
// when present.
func ComposeRaw(f EmailFields) []byte {
	var b bytes.Buffer

	writeHeader(&b, "To", joinAddresses(f.To))
	if len(f.Cc) > 0 {
		writeHeader(&b, "Cc", joinAddresses(f.Cc))
	}
	if len(f.Bcc) > 0 {
		writeHeader(&b, "Bcc", joinAddresses(f.Bcc))
	}
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", f.Subject))
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", "text/plain; charset=UTF-8")
	writeHeader(&b, "Content-Transfer-Encoding", "quoted-printable")
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&b)
	// writes to a bytes.Buffer don't fail
	_, _ = qp.Write([]byte(f.Body))
	_ = qp.Close()

	return b.Bytes()
}

func writeHeader(b *bytes.Buffer, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(headerSanitizer.Replace(value))
	b.WriteString("\r\n")
}

func joinAddresses(addrs []string) string {
	trimmed := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			trimmed = append(trimmed, a)
		}
	}

	return strings.Join(trimmed, ", ")
}
