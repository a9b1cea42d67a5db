package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// UserCreateRequest provisions an account from the admin panel.
type UserCreateRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	Role  string `json:"role" validate:"required,oneof=student teacher admin"`
}

// UserListRequest defines filters for listing accounts.
type UserListRequest struct {
	Role     string
	Search   string
	Page     int
	PageSize int
}

// UserResponse serializes an account.
type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserListResponse wraps a paginated account listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// UserLite summarizes a user without exposing full profile data.
type UserLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// NewUserLite returns nil when the association was not loaded.
func NewUserLite(user models.User) *UserLite {
	if user.ID == 0 {
		return nil
	}
	return &UserLite{ID: user.ID, Name: user.Name, Email: user.Email}
}
