package dto

import (
	"time"

	"github.com/coup-study/coup-api/internal/models"
)

// UserDTO represents the caller's own account, or any account in the admin console
type UserDTO struct {
	ID          uint64            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Role        models.UserRole   `json:"role"`
	Status      models.UserStatus `json:"status"`
	LastSeenAt  *time.Time        `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ProfileDTO is the public view of another user
type ProfileDTO struct {
	ID          uint64    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthResponse is returned by login
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

// UserListResponse represents a paginated admin user search
type UserListResponse struct {
	Users      []UserDTO `json:"users"`
	Pagination Page      `json:"pagination"`
}

func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Status:      user.Status,
		LastSeenAt:  user.LastSeenAt,
		CreatedAt:   user.CreatedAt,
	}
}

func ToProfileDTO(user models.User) ProfileDTO {
	return ProfileDTO{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}
}

// toAuthorDTO returns nil when the relation was not preloaded.
func toAuthorDTO(user models.User) *ProfileDTO {
	if user.ID == 0 {
		return nil
	}
	p := ToProfileDTO(user)
	return &p
}

func ToUserDTOs(users []models.User) []UserDTO {
	out := make([]UserDTO, len(users))
	for i, u := range users {
		out[i] = ToUserDTO(u)
	}
	return out
}
