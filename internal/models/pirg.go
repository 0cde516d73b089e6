package models

import "time"

// PirgRole selects one of the two membership sets of a Pirg.
type PirgRole string

const (
	PirgRoleUser  PirgRole = "user"
	PirgRoleAdmin PirgRole = "admin"
)

// Pirg is a Principal Investigator Group. The owner is never part of
// AdminIDs or UserIDs.
type Pirg struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	AdminIDs  []int64   `json:"admin_ids"`
	UserIDs   []int64   `json:"user_ids"`
	GroupIDs  []int64   `json:"group_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMember reports whether userID is in the set selected by role.
func (p *Pirg) HasMember(role PirgRole, userID int64) bool {
	ids := p.UserIDs
	if role == PirgRoleAdmin {
		ids = p.AdminIDs
	}
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}

// PirgSignature is the short form of a Pirg embedded in other payloads.
type PirgSignature struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Signature returns the short form of p.
func (p *Pirg) Signature() PirgSignature {
	return PirgSignature{ID: p.ID, Name: p.Name}
}

// PirgDetail is a Pirg with owner, members and groups resolved.
type PirgDetail struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Owner     UserSignature    `json:"owner"`
	Admins    []UserSignature  `json:"admins"`
	Users     []UserSignature  `json:"users"`
	Groups    []GroupSignature `json:"groups"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
