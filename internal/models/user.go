package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name" json:"name"`
	Email     string    `bun:"email" json:"email"`
	PhotoURL  string    `bun:"photo_url" json:"photo_url,omitempty"`
	Role      Role      `bun:"role" json:"role"`
	IsActive  bool      `bun:"is_active" json:"is_active"`
	IsFraud   bool      `bun:"is_fraud" json:"is_fraud"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
