package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Group returns the broadcast group a connection of this role joins.
func (r Role) Group() string {
	switch r {
	case RoleManager:
		return GroupManagers
	case RoleAdmin:
		return GroupAdministrators
	default:
		return GroupCustomers
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleManager, RoleAdmin:
		return true
	}
	return false
}

const (
	GroupCustomers      = "Customers"
	GroupManagers       = "Managers"
	GroupAdministrators = "Administrators"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     Role   `json:"role" validate:"omitempty,oneof=customer manager"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
