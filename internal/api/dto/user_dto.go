package dto

import (
	"time"

	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/service"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Surname    string `json:"surname"`
	Name       string `json:"name"`
	Fathername string `json:"fathername"`
	Email      string `json:"email"`
	BirthDate  string `json:"birthDate"`
	Password   string `json:"password"`
}

// UserResponse is the public view of an account. It never carries the hash.
type UserResponse struct {
	ID         string            `json:"id"`
	Surname    string            `json:"surname"`
	Name       string            `json:"name"`
	Fathername string            `json:"fathername"`
	Email      string            `json:"email"`
	BirthDate  string            `json:"birthDate"`
	Role       domain.UserRole   `json:"role"`
	Status     domain.UserStatus `json:"status"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// UserListRequest query for GET /api/user.
type UserListRequest struct {
	Limit   int    `query:"limit"`
	Page    int    `query:"page"`
	OrderBy string `query:"orderBy"`
	Sort    string `query:"sort"`
}

// UserListResponse is one page of users.
type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Pages int            `json:"pages"`
}

// NewUserResponse maps the domain model.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Surname:    u.Surname,
		Name:       u.Name,
		Fathername: u.Fathername,
		Email:      u.Email,
		BirthDate:  u.BirthDate.Format(time.DateOnly),
		Role:       u.Role,
		Status:     u.Status,
		CreatedAt:  u.CreatedAt,
	}
}

// NewUserListResponse maps a service page.
func NewUserListResponse(res *service.ListResult) UserListResponse {
	items := make([]UserResponse, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, NewUserResponse(&res.Items[i]))
	}
	return UserListResponse{
		Items: items,
		Total: res.Total,
		Page:  res.Page,
		Limit: res.Limit,
		Pages: res.Pages,
	}
}
