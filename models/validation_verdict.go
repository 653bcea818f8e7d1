package models

// ValidationVerdict is the outcome of comparing an extracted document
// against the values the client claimed. NameMatches is informational only
// and never blocks acceptance.
type ValidationVerdict struct {
	Accepted    bool               `json:"accepted"`
	Extracted   *ExtractedDocument `json:"extracted,omitempty"`
	NameMatches bool               `json:"name_matches"`
	Reason      string             `json:"reason,omitempty"`
}
