package models

// ExtractedDocument is the normalized result of an OCR extraction. Both
// fields are provider supplied and untrusted; the cross-validator decides
// what to do with them.
type ExtractedDocument struct {
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
}
