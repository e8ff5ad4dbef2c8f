package models

import "time"

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified bool
	TwoFaEnabled  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
