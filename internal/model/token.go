package model

import "time"

// AdminSession contains the data stored with an admin session token.
type AdminSession struct {
	Subject   string    `json:"subject"`
	RemoteIP  string    `json:"remote_ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity is the authenticated caller resolved from an identity-provider token.
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}
