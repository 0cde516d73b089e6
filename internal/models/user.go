package models

import "time"

// User is a person known to the directory.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	Email     string    `json:"email"`
	IsPI      bool      `json:"is_pi"`
	SponsorID *int64    `json:"sponsor_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSignature is the short form of a User embedded in other payloads.
type UserSignature struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Signature returns the short form of u.
func (u *User) Signature() UserSignature {
	return UserSignature{ID: u.ID, Username: u.Username}
}

// UserDetail is a User with its sponsor and memberships resolved.
type UserDetail struct {
	ID        int64            `json:"id"`
	Username  string           `json:"username"`
	Firstname string           `json:"firstname"`
	Lastname  string           `json:"lastname"`
	Email     string           `json:"email"`
	IsPI      bool             `json:"is_pi"`
	Sponsor   *UserSignature   `json:"sponsor"`
	Pirgs     []PirgSignature  `json:"pirgs"`
	Groups    []GroupSignature `json:"groups"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
