package model

import (
	"time"

	"github.com/google/uuid"
)

// User roles. A user is created on first login and never changes role.
const (
	RoleAdmin   = "admin"
	RoleRegular = "regular"
)

// User represents an account in the system
type User struct {
	ID        uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"-"` // Not exposed in API
}

// LoginRequest is the DTO for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	UserType string `json:"userType" validate:"omitempty,oneof=admin user"`
}

// LoginResponse is the API response DTO for POST /auth/login
type LoginResponse struct {
	Token    string    `json:"token"`
	UserType string    `json:"userType"`
	Email    string    `json:"email"`
	UserID   uuid.UUID `json:"userId"`
}

// VerifyRequest is the DTO for POST /auth/verify
type VerifyRequest struct {
	Token string `json:"token" validate:"required,notblank"`
}

// VerifyResponse is the API response DTO for POST /auth/verify
type VerifyResponse struct {
	Valid    bool      `json:"valid"`
	UserID   uuid.UUID `json:"userId"`
	Email    string    `json:"email"`
	UserType string    `json:"userType"`
}
