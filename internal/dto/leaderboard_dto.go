package dto

import (
	"time"

	"github.com/noah-isme/campuscode-api/internal/models"
)

// LeaderboardEntry is one row of a leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	College     string `json:"college,omitempty"`
	XP          int64  `json:"xp"`
}

// LeaderboardResponse wraps leaderboard rows.
type LeaderboardResponse struct {
	Scope   string             `json:"scope"`
	College string             `json:"college,omitempty"`
	Entries []LeaderboardEntry `json:"entries"`
}

// StandingResponse is the rank summary of a single user.
type StandingResponse struct {
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	College     string `json:"college,omitempty"`
	XP          int64  `json:"xp"`
	GlobalRank  int    `json:"global_rank"`
	CollegeRank int    `json:"college_rank"`
}

// XPAdjustmentRequest is the admin payload for awarding or removing xp.
type XPAdjustmentRequest struct {
	Amount int64  `json:"amount" validate:"required,ne=0"`
	Reason string `json:"reason" validate:"required,max=255"`
}

// RecomputeResponse reports the effect of a rank recomputation.
type RecomputeResponse struct {
	Evaluated int       `json:"evaluated"`
	Updated   int       `json:"updated"`
	At        time.Time `json:"at"`
}

// NewStandingResponse converts a user into a standing DTO.
func NewStandingResponse(user models.User) StandingResponse {
	return StandingResponse{
		UserID:      user.ID,
		Username:    user.Username,
		College:     user.College,
		XP:          user.XP,
		GlobalRank:  user.GlobalRank,
		CollegeRank: user.CollegeRank,
	}
}

// NewLeaderboardResponse builds leaderboard rows using the scope's rank column.
func NewLeaderboardResponse(users []models.User, college string) LeaderboardResponse {
	scope := "global"
	if college != "" {
		scope = "college"
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, user := range users {
		rank := user.GlobalRank
		if college != "" {
			rank = user.CollegeRank
		}
		entries = append(entries, LeaderboardEntry{
			Rank:        rank,
			UserID:      user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			College:     user.College,
			XP:          user.XP,
		})
	}

	return LeaderboardResponse{Scope: scope, College: college, Entries: entries}
}
