package service

import (
	"sort"

	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/repository"
)

// SortForRanking orders users by xp descending, then username and id ascending.
func SortForRanking(users []models.User) []models.User {
	sorted := append([]models.User(nil), users...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].XP != sorted[j].XP {
			return sorted[i].XP > sorted[j].XP
		}
		if sorted[i].Username != sorted[j].Username {
			return sorted[i].Username < sorted[j].Username
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

type denseCounter struct {
	rank   int
	lastXP int64
}

func (d *denseCounter) next(xp int64) int {
	if d.rank == 0 || xp != d.lastXP {
		d.rank++
		d.lastXP = xp
	}
	return d.rank
}

// AssignDenseRanks computes global and per-college dense ranks. Ties share a
// rank and the next distinct xp value is exactly one rank lower. Users
// without a college get college rank 0.
func AssignDenseRanks(users []models.User) []repository.RankUpdate {
	sorted := SortForRanking(users)

	global := &denseCounter{}
	colleges := make(map[string]*denseCounter)
	ranks := make([]repository.RankUpdate, 0, len(sorted))

	for _, user := range sorted {
		update := repository.RankUpdate{
			UserID:     user.ID,
			GlobalRank: global.next(user.XP),
		}

		if user.College != "" {
			counter, ok := colleges[user.College]
			if !ok {
				counter = &denseCounter{}
				colleges[user.College] = counter
			}
			update.CollegeRank = counter.next(user.XP)
		}

		ranks = append(ranks, update)
	}

	return ranks
}

// ChangedRanks keeps only the updates that differ from the stored ranks.
func ChangedRanks(users []models.User, ranks []repository.RankUpdate) []repository.RankUpdate {
	stored := make(map[uint]models.User, len(users))
	for _, user := range users {
		stored[user.ID] = user
	}

	changed := make([]repository.RankUpdate, 0)
	for _, rank := range ranks {
		user, ok := stored[rank.UserID]
		if ok && user.GlobalRank == rank.GlobalRank && user.CollegeRank == rank.CollegeRank {
			continue
		}
		changed = append(changed, rank)
	}
	return changed
}
