package message

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"google.golang.org/api/gmail/v1"
)

// DefaultCharset is assumed when a part declares none.
const DefaultCharset = "utf-8"

var charsetRe = regexp.MustCompile(`(?i)charset=([^;]+)`)

// HeaderValue returns the first header with the given name, compared
// case-insensitively.
func HeaderValue(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}

	return ""
}

// ResolveCharset extracts the lower-cased charset label from the
// Content-Type header, defaulting to utf-8.
func ResolveCharset(headers []*gmail.MessagePartHeader) string {
	m := charsetRe.FindStringSubmatch(HeaderValue(headers, "Content-Type"))
	if m == nil {
		return DefaultCharset
	}

	label := strings.ToLower(strings.Trim(strings.TrimSpace(m[1]), `"'`))
	if label == "" {
		return DefaultCharset
	}

	return label
}

// DecodeCharset converts data in the labelled charset to UTF-8. Unknown
// labels and mislabelled bytes fall back to detection and finally to
// Windows-1252, so the result is always valid UTF-8.
func DecodeCharset(data []byte, label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		label = DefaultCharset
	}

	if isUTF8Label(label) {
		if utf8.Valid(data) {
			return string(data)
		}
		log.Printf("Part declared %s but is not valid UTF-8, detecting charset", label)

		return detectAndDecode(data)
	}

	text, err := convert(label, data)
	if err != nil {
		log.Println(fmt.Errorf("convert %s failed, detecting charset: %w", label, err))

		return detectAndDecode(data)
	}

	return text
}

func isUTF8Label(label string) bool {
	switch label {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}

	return false
}

func convert(label string, data []byte) (string, error) {
	r, err := charset.Reader(label, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("charset.Reader failed: %w", err)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("io.ReadAll failed: %w", err)
	}
	if !utf8.Valid(out) {
		return "", fmt.Errorf("charset %s produced invalid UTF-8", label)
	}

	return string(out), nil
}

func detectAndDecode(data []byte) string {
	minConfidence := 30
	if len(data) > 50 {
		minConfidence = 50
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err == nil && res.Confidence >= minConfidence {
		if text, err := convert(res.Charset, data); err == nil {
			return text
		}
	}

	// every byte maps to a rune in Windows-1252
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}

	return string(out)
}
