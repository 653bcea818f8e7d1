package main

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"go-id-register/models"
)

// IdentityNumberLength is the exact number of decimal digits in a national
// identity number.
const IdentityNumberLength = 12

// IsValidIdentityNumber reports whether s is exactly 12 decimal digits.
func IsValidIdentityNumber(s string) bool {
	if len(s) != IdentityNumberLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CrossValidator compares OCR output against the values the client claimed.
// OCR number extraction is trusted enough to gate acceptance; name
// extraction is not, so the name comparison is surfaced but never blocks.
type CrossValidator struct{}

// Validate produces the verdict for a claimed identity number and name
// against an extracted document. The claimed number must already be shape
// checked by the caller.
func (CrossValidator) Validate(claimedNumber string, claimedName string, extracted models.ExtractedDocument) models.ValidationVerdict {
	extractedCopy := extracted
	verdict := models.ValidationVerdict{
		Extracted:   &extractedCopy,
		NameMatches: namesMatch(claimedName, extracted.Name),
	}

	extractedDigits := digitsOnly(extracted.IdentityNumber)
	if extractedDigits == "" {
		verdict.Reason = "identity number could not be read from the document"
		return verdict
	}
	if extractedDigits != claimedNumber {
		verdict.Reason = "identity number on the document does not match the identity number provided"
		return verdict
	}

	verdict.Accepted = true
	return verdict
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// namesMatch folds case, diacritics and whitespace before comparing, since
// OCR output rarely preserves any of them faithfully.
func namesMatch(claimed, extracted string) bool {
	c := foldName(claimed)
	e := foldName(extracted)
	return c != "" && c == e
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldName(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
