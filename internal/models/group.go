package models

import "time"

// Group is a set of users scoped to exactly one Pirg.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	PirgID    int64     `json:"pirg_id"`
	UserIDs   []int64   `json:"user_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMember reports whether userID belongs to g.
func (g *Group) HasMember(userID int64) bool {
	for _, id := range g.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupSignature is the short form of a Group embedded in other payloads.
type GroupSignature struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Signature returns the short form of g.
func (g *Group) Signature() GroupSignature {
	return GroupSignature{ID: g.ID, Name: g.Name}
}

// GroupDetail is a Group with its Pirg and members resolved.
type GroupDetail struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Pirg      PirgSignature   `json:"pirg"`
	Users     []UserSignature `json:"users"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
