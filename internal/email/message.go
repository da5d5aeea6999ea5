package email

import (
	"fmt"
	"strings"
	"time"
)

// Subject prefixes that identify the kind of a message. The mock sender keys on them.
const (
	SubjectVerifyEmail = "Verify your email"
	SubjectNewQuote    = "New quote on"
)

// Compose builds a plain text RFC 5322 message.
func Compose(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// KindOf maps a subject to a short message kind.
func KindOf(subject string) string {
	switch {
	case strings.HasPrefix(subject, SubjectVerifyEmail):
		return "verify_email"
	case strings.HasPrefix(subject, SubjectNewQuote):
		return "new_quote"
	}
	return "unknown"
}
