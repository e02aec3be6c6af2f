package dto

import (
	"time"

	"bakery/internal/model"
)

// UserResponseDTO is returned in API responses
type UserResponseDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     string    `json:"image,omitempty"`
	Credits   float64   `json:"credits"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserResponse(u *model.User) UserResponseDTO {
	return UserResponseDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Image:     u.Image,
		Credits:   u.Credits.Float(),
		Plan:      u.Plan,
		CreatedAt: u.CreatedAt,
	}
}
