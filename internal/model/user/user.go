package user

import "time"

// User is a registered account. Records are never deleted by the service.
type User struct {
	ID            string    `json:"userId"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	ConsentMemory bool      `json:"consentMemory"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
