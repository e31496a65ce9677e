package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail returns the canonical form of an email address used
// for storage and dedup: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone reduces a phone number to its canonical digit form.
// Russian numbers written with a leading 8 are folded onto the +7
// prefix so "8 (495) 123-45-67" and "+7 495 1234567" dedup together.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	return digits
}

// NormalizeFullName returns the canonical form of a person's name used
// for dedup: Unicode-normalized (NFC), lower-cased, inner whitespace
// collapsed to single spaces.
func NormalizeFullName(name string) string {
	name = norm.NFC.String(name)
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), " ")
}

// Slugify derives a URL-safe identifier from a company name. Letters
// and digits pass through lower-cased; runs of anything else collapse
// to single hyphens.
func Slugify(name string) string {
	name = norm.NFC.String(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	lastHyphen := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
