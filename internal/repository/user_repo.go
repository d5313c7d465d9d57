package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/models"
)

// RankUpdate carries freshly computed ranks for one user.
type RankUpdate struct {
	UserID      uint
	GlobalRank  int
	CollegeRank int
}

// LeaderboardQuery narrows the leaderboard listing.
type LeaderboardQuery struct {
	College string
	Limit   int
}

// UserRepository provides access to user records and their derived ranks.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	AddXP(ctx context.Context, id uint, delta int64) error
	ListRankable(ctx context.Context) ([]models.User, error)
	UpdateRanks(ctx context.Context, updates []RankUpdate) error
	ListLeaderboard(ctx context.Context, query LeaderboardQuery) ([]models.User, error)
	CountStudents(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

// AddXP applies an atomic increment, flooring the balance at zero.
func (r *userRepository) AddXP(ctx context.Context, id uint, delta int64) error {
	return addXP(r.db.WithContext(ctx), id, delta)
}

func addXP(db *gorm.DB, id uint, delta int64) error {
	result := db.Model(&models.User{}).
		Where("id = ?", id).
		Update("xp", gorm.Expr("CASE WHEN xp + ? < 0 THEN 0 ELSE xp + ? END", delta, delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListRankable returns students in leaderboard order: xp desc, username asc, id asc.
func (r *userRepository) ListRankable(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", models.RoleStudent).
		Order("xp DESC").
		Order("username ASC").
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateRanks(ctx context.Context, updates []RankUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			err := tx.Model(&models.User{}).
				Where("id = ?", update.UserID).
				Updates(map[string]interface{}{
					"global_rank":  update.GlobalRank,
					"college_rank": update.CollegeRank,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepository) ListLeaderboard(ctx context.Context, query LeaderboardQuery) ([]models.User, error) {
	db := r.db.WithContext(ctx).
		Where("role = ?", models.RoleStudent)

	if query.College != "" {
		db = db.Where("college = ?", query.College).
			Order("college_rank ASC")
	} else {
		db = db.Order("global_rank ASC")
	}

	db = db.Order("username ASC")
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) CountStudents(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleStudent).
		Count(&count).Error
	return count, err
}
