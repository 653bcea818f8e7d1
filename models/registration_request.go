package models

// RegistrationRequest is the JSON body of /api/register. Age is a pointer so
// a missing field can be told apart from a zero value.
type RegistrationRequest struct {
	FullName        string `json:"full_name"`
	ContactNo       string `json:"contact_no"`
	DateOfBirth     string `json:"date_of_birth"` // formatted as 2006-01-02
	Age             *int   `json:"age"`
	IdentityNumber  string `json:"identity_number"`
	ValidationToken string `json:"validation_token"`
}
