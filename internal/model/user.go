package model

import "time"

// Roles carried in identity tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a loyalty account. ID is the subject issued by the identity provider.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	TotalPoints int64     `json:"total_points"`
	Disabled    bool      `json:"disabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserUpdate holds the admin-editable fields of a user. Nil fields are left unchanged.
type UserUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	Role        *string `json:"role,omitempty"`
	Disabled    *bool   `json:"disabled,omitempty"`
}
