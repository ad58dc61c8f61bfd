// Package extract pulls contact identities (name + address) out of
// message headers and bodies and classifies them. All patterns are
// RE2, so matching stays linear-time on adversarial input.
package extract

import (
	"io"
	"mime/quotedprintable"
	"regexp"
	"strings"
	"time"
)

// Field identifies which part of a message yielded a contact.
type Field string

const (
	FieldFrom    Field = "from"
	FieldTo      Field = "to"
	FieldCc      Field = "cc"
	FieldBcc     Field = "bcc"
	FieldReplyTo Field = "reply-to"
	FieldBody    Field = "body"
)

// HeaderFields are the address fields mined from message headers.
var HeaderFields = []Field{FieldFrom, FieldTo, FieldCc, FieldBcc, FieldReplyTo}

// Contact is one name/address sighting prior to aggregation. Name is
// the empty string when the entry carried no display name.
type Contact struct {
	Name  string
	Email string
}

// ExtractedContact carries a sighting with its provenance.
type ExtractedContact struct {
	Name     string
	Email    string
	Field    Field
	Folder   string
	Date     time.Time
	Category string
}

var (
	// headerEntryPattern matches one address-list entry:
	// `"Display Name" <addr@host>`, `Display Name <addr@host>` or a
	// bare `addr@host`. Group 1 is the optional display name, group 2
	// the required address. The name capture is lazy so a bare
	// address never donates its local part to the name.
	headerEntryPattern = regexp.MustCompile(`^(?:"?([^"<]*?)"?\s*)?<?([^\s<>",;]+@[^\s<>",;]+)>?$`)

	// bodyAddressPattern scans free text for bare addresses, Unicode
	// letters included.
	bodyAddressPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}._%+-]*@[\p{L}\p{N}](?:[\p{L}\p{N}.-]*[\p{L}\p{N}])?\.\p{L}{2,}`)
)

// FromHeader extracts contacts from a single address header value.
// The value may hold several comma or semicolon separated entries;
// entries without an @ are excluded.
func FromHeader(value string) []Contact {
	entries := splitAddressList(value)

	var contacts []Contact
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || !strings.Contains(entry, "@") {
			continue
		}

		m := headerEntryPattern.FindStringSubmatch(entry)
		if m == nil {
			continue
		}

		name := strings.Trim(strings.TrimSpace(m[1]), `"`)
		email := strings.ToLower(strings.TrimSpace(m[2]))
		contacts = append(contacts, Contact{Name: name, Email: email})
	}

	return contacts
}

// splitAddressList splits an address header on commas and semicolons,
// except inside double quotes, so a quoted display name like
// "Doe, Jane" stays with its address.
func splitAddressList(value string) []string {
	var entries []string
	var b strings.Builder
	inQuotes := false
	for _, r := range value {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case (r == ',' || r == ';') && !inQuotes:
			entries = append(entries, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(entries, b.String())
}

// FromBody extracts unique addresses from raw body text. The text is
// quoted-printable decoded first; repeat sightings of the same
// address (signatures get quoted a lot) collapse into one.
func FromBody(body string) []Contact {
	text := decodeQuotedPrintable(body)

	matches := bodyAddressPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	contacts := make([]Contact, 0, len(matches))
	for _, m := range matches {
		email := strings.ToLower(m)
		if seen[email] {
			continue
		}
		seen[email] = true
		contacts = append(contacts, Contact{Email: email})
	}

	return contacts
}

// decodeQuotedPrintable decodes quoted-printable content, falling
// back to the raw text when decoding fails. Soft line breaks are
// stripped first so a split encoded word does not truncate the
// decoder mid-stream.
func decodeQuotedPrintable(s string) string {
	s = strings.ReplaceAll(s, "=\r\n", "")
	s = strings.ReplaceAll(s, "=\n", "")

	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(s)))
	if err != nil {
		return s
	}
	return string(decoded)
}

// DomainOf returns the domain part of an address, lower-cased, or the
// empty string when there is none.
func DomainOf(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 || idx == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[idx+1:])
}
