package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campuscode-api/internal/models"
)

// SubmissionFilter allows narrowing ledger queries.
type SubmissionFilter struct {
	UserID    *uint
	ProblemID *uint
	Passed    *bool
	Limit     int
}

// SubmissionRepository is the append-only grading ledger. Rows are inserted, never updated.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	RecordAccepted(ctx context.Context, submission *models.Submission, points int64) (bool, error)
	HasPassed(ctx context.Context, userID, problemID uint) (bool, error)
	SolvedProblemIDs(ctx context.Context, userID uint) ([]uint, error)
	Count(ctx context.Context) (int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Problem")

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProblemID != nil {
		query = query.Where("problem_id = ?", *filter.ProblemID)
	}
	if filter.Passed != nil {
		query = query.Where("passed = ?", *filter.Passed)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(submission).Error
}

// RecordAccepted appends a passed entry and, when it is the user's first pass on
// the problem, adds points to their xp in the same transaction. The user row is
// locked first so concurrent passes by the same user award once.
func (r *submissionRepository) RecordAccepted(ctx context.Context, submission *models.Submission, points int64) (bool, error) {
	awarded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&user, submission.UserID).Error; err != nil {
			return err
		}

		solved, err := hasPassed(tx, submission.UserID, submission.ProblemID)
		if err != nil {
			return err
		}

		if !solved && points != 0 {
			if err := addXP(tx, submission.UserID, points); err != nil {
				return err
			}
		}
		awarded = !solved

		submission.Passed = true
		return tx.Omit(clause.Associations).Create(submission).Error
	})
	if err != nil {
		return false, err
	}
	return awarded, nil
}

func (r *submissionRepository) HasPassed(ctx context.Context, userID, problemID uint) (bool, error) {
	return hasPassed(r.db.WithContext(ctx), userID, problemID)
}

func hasPassed(db *gorm.DB, userID, problemID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Submission{}).
		Where("user_id = ? AND problem_id = ? AND passed = ?", userID, problemID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *submissionRepository) SolvedProblemIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("user_id = ? AND passed = ?", userID, true).
		Distinct("problem_id").
		Pluck("problem_id", &ids).Error
	return ids, err
}

func (r *submissionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).Count(&count).Error
	return count, err
}
