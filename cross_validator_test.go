package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go-id-register/models"
)

func TestCrossValidator_AcceptsMatchingNumber(t *testing.T) {
	verdict := CrossValidator{}.Validate("123456789012", "", models.ExtractedDocument{
		Name:           "John Doe",
		IdentityNumber: "123456789012",
	})

	require.True(t, verdict.Accepted)
	require.Empty(t, verdict.Reason)
	require.NotNil(t, verdict.Extracted)
	require.Equal(t, "123456789012", verdict.Extracted.IdentityNumber)
}

func TestCrossValidator_RejectsMismatchedNumber(t *testing.T) {
	verdict := CrossValidator{}.Validate("123456789012", "", models.ExtractedDocument{
		IdentityNumber: "123456789011",
	})

	require.False(t, verdict.Accepted)
	require.Contains(t, verdict.Reason, "identity number")
}

func TestCrossValidator_NormalizesExtractedNumberToDigits(t *testing.T) {
	// OCR output often carries the grouping the card prints.
	verdict := CrossValidator{}.Validate("123456789012", "", models.ExtractedDocument{
		IdentityNumber: "1234 5678 9012",
	})
	require.True(t, verdict.Accepted)

	verdict = CrossValidator{}.Validate("123456789012", "", models.ExtractedDocument{
		IdentityNumber: "1234-5678-9012",
	})
	require.True(t, verdict.Accepted)
}

func TestCrossValidator_RejectsUnreadableNumber(t *testing.T) {
	verdict := CrossValidator{}.Validate("123456789012", "", models.ExtractedDocument{
		Name:           "John Doe",
		IdentityNumber: "",
	})

	require.False(t, verdict.Accepted)
	require.Contains(t, verdict.Reason, "could not be read")
}

func TestCrossValidator_NameMismatchDoesNotBlock(t *testing.T) {
	verdict := CrossValidator{}.Validate("123456789012", "Someone Completely Different", models.ExtractedDocument{
		Name:           "John Doe",
		IdentityNumber: "123456789012",
	})

	require.True(t, verdict.Accepted)
	require.False(t, verdict.NameMatches)
}

func TestCrossValidator_NameMatchingFoldsCaseAndDiacritics(t *testing.T) {
	tests := []struct {
		claimed   string
		extracted string
		want      bool
	}{
		{"John Doe", "JOHN DOE", true},
		{"José García", "jose garcia", true},
		{"John  Doe", "John Doe", true}, // whitespace collapsed
		{"John Doe", "Jane Doe", false},
		{"", "John Doe", false}, // no claimed name, nothing to match
	}

	for _, tt := range tests {
		verdict := CrossValidator{}.Validate("123456789012", tt.claimed, models.ExtractedDocument{
			Name:           tt.extracted,
			IdentityNumber: "123456789012",
		})
		require.Equalf(t, tt.want, verdict.NameMatches, "claimed %q vs extracted %q", tt.claimed, tt.extracted)
	}
}

func TestIsValidIdentityNumber(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"123456789012", true},
		{"000000000000", true},
		{"12345", false},
		{"1234567890123", false},
		{"12345678901a", false},
		{"1234 5678 901", false},
		{"", false},
		{"१२३४५६७८९०१२", false}, // non-ASCII digits are not accepted
	}

	for _, tt := range tests {
		require.Equalf(t, tt.want, IsValidIdentityNumber(tt.number), "number %q", tt.number)
	}
}
