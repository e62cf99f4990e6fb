package message

import (
	"strings"
	"unicode"

	"github.com/emersion/go-message/mail"
)

// Address is a mailbox with an optional display name.
type Address struct {
	Name  string `json:"name,omitempty" jsonschema:"the display name"`
	Email string `json:"email" jsonschema:"the email address"`
}

// String formats the address the way it appears in a header. Names that
// are not a plain phrase are quoted so the result parses back to a.
func (a Address) String() string {
	switch {
	case a.Name == "":
		return a.Email
	case isPhrase(a.Name):
		return a.Name + " <" + a.Email + ">"
	}

	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

func isPhrase(name string) bool {
	return strings.TrimSpace(name) == name &&
		!strings.ContainsAny(name, `()<>[]:;@\,."`) &&
		!strings.ContainsFunc(name, unicode.IsControl)
}

// ParseAddress parses `"Name" <addr>` or a bare `addr`. The second result is
// false when no email could be found.
func ParseAddress(raw string) (Address, bool) {
	raw = strings.TrimSpace(raw)

	var addr Address
	if open := strings.Index(raw, "<"); open != -1 {
		addr.Name = raw[:open]
		if end := strings.Index(raw[open:], ">"); end != -1 {
			addr.Email = strings.TrimSpace(raw[open+1 : open+end])
		}
	} else {
		addr.Email = raw
	}

	addr.Name = strings.TrimSpace(strings.Trim(strings.TrimSpace(addr.Name), `"`))

	return addr, addr.Email != ""
}

// ParseAddressList splits a header value on commas and parses each entry,
// dropping entries without an email. Header order is kept.
func ParseAddressList(raw string) []Address {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]Address, 0, len(parts))

	for _, part := range parts {
		if addr, ok := ParseAddress(part); ok {
			result = append(result, addr)
		}
	}

	return result
}

// ParseAddressHeader reads an address header strictly, so quoted names keep
// their commas and specials. Values the strict parser rejects go through
// ParseAddressList instead.
func ParseAddressHeader(raw string) []Address {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	list, err := mail.ParseAddressList(raw)
	if err != nil {
		return ParseAddressList(raw)
	}

	result := make([]Address, 0, len(list))
	for _, a := range list {
		result = append(result, Address{Name: a.Name, Email: a.Address})
	}

	return result
}

// FormatAddressList renders addresses back into header form.
func FormatAddressList(addrs []Address) []string {
	if len(addrs) == 0 {
		return nil
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}

	return out
}

// JoinAddressList renders addresses as a single header value.
func JoinAddressList(addrs []Address) string {
	return strings.Join(FormatAddressList(addrs), ", ")
}
