package domain

// User is the current-user profile returned by the ledger
type User struct {
	ID              int64      `json:"id"`
	FullName        string     `json:"fullName"`
	Email           string     `json:"email"`
	ProfileImageURL *string    `json:"profileImageUrl,omitempty"`
	CreatedAt       *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt       *Timestamp `json:"updatedAt,omitempty"`
}

// LoginRequest is the credential exchange body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued by the ledger
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
