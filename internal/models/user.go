package models

import (
	"strings"
	"time"
)

// Role identifies what a user is allowed to do on the platform.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Capability is a single permission checked by the authorization gate.
type Capability string

const (
	CapabilityManageProblems Capability = "manage_problems"
	CapabilityManageRanks    Capability = "manage_ranks"
	CapabilityViewAdmin      Capability = "view_admin"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleAdmin: {
		CapabilityManageProblems: {},
		CapabilityManageRanks:    {},
		CapabilityViewAdmin:      {},
	},
	RoleStudent: {},
}

// ParseRole normalises a role claim. Unknown values yield an empty role.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleStudent:
		return RoleStudent
	default:
		return ""
	}
}

// Can reports whether the role grants the capability.
func (r Role) Can(capability Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, allowed := caps[capability]
	return allowed
}

// User is a platform account. Ranks are derived from xp and rewritten by the rank engine.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email       string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	Role        Role      `gorm:"size:32;not null;default:student;index" json:"role"`
	College     string    `gorm:"size:255;index" json:"college"`
	XP          int64     `gorm:"column:xp;not null;default:0;index" json:"xp"`
	GlobalRank  int       `gorm:"not null;default:0" json:"global_rank"`
	CollegeRank int       `gorm:"not null;default:0" json:"college_rank"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsStudent reports whether the user takes part in the leaderboard.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
