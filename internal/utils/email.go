package utils

import (
	"net/mail"
	"strings"
)

func UniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	unique := make([]string, 0, len(emails))

	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if _, exists := seen[email]; !exists {
			seen[email] = struct{}{}
			unique = append(unique, email)
		}
	}

	return unique
}

// ExtractAddress parses strings like "Jane Doe <jane@acme.com>" and returns
// the bare address and the display name. A bare address passes through as-is.
func ExtractAddress(raw string) (address, name string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	parsed, err := mail.ParseAddress(raw)
	if err != nil {
		return strings.ToLower(raw), ""
	}

	return strings.ToLower(parsed.Address), parsed.Name
}

func ExtractDomainFromEmail(email string) string {
	address, _ := ExtractAddress(email)

	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}
