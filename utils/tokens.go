package utils

// AccessToken is the claims payload of the identity service's access JWTs.
// This service only verifies them; issuance, refresh and revocation live in
// the identity service.
type AccessToken struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
}
