package mailparse

import (
	"regexp"
	"strings"
)

// Address is a display name and mailbox pair
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// String formats the address for a header.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	if strings.ContainsAny(a.Name, `,;"<>@()`) {
		return `"` + strings.ReplaceAll(a.Name, `"`, `\"`) + `" <` + a.Email + ">"
	}
	return a.Name + " <" + a.Email + ">"
}

// Header formats the address for an outgoing header, Q-encoding a non-ASCII
// display name.
func (a Address) Header() string {
	encoded := encodeHeader(a.Name)
	if encoded == a.Name {
		return a.String()
	}
	return encoded + " <" + a.Email + ">"
}

// fromPattern matches `optional-quoted-name <email>`.
var fromPattern = regexp.MustCompile(`^\s*(?:"([^"]*)"|([^<]*?))\s*<([^<>]*)>\s*$`)

// ParseAddress parses a single From-style header. Without angle brackets
// the whole header is taken as the email.
func ParseAddress(header string) Address {
	m := fromPattern.FindStringSubmatch(header)
	if m == nil {
		return Address{Email: strings.TrimSpace(header)}
	}
	name := m[1]
	if name == "" {
		name = strings.TrimSpace(m[2])
	}
	return Address{Name: name, Email: strings.TrimSpace(m[3])}
}

// JoinAddresses formats a list of addresses for a header.
func JoinAddresses(addrs []Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Email == "" {
			continue
		}
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
