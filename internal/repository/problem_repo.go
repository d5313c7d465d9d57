package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/models"
)

// ProblemQuery defines filters and pagination for the problem catalogue.
type ProblemQuery struct {
	Difficulty string
	Tags       []string
	Search     string
	Offset     int
	Limit      int
}

// ProblemRepository exposes persistence operations for problems and their test cases.
type ProblemRepository interface {
	List(ctx context.Context, query ProblemQuery) ([]models.Problem, int64, error)
	GetByID(ctx context.Context, id uint) (models.Problem, error)
	ListTestCases(ctx context.Context, problemID uint) ([]models.TestCase, error)
	Create(ctx context.Context, problem *models.Problem, cases []models.TestCase) error
	Count(ctx context.Context) (int64, error)
}

// NewProblemRepository constructs a problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

type problemRepository struct {
	db *gorm.DB
}

func (r *problemRepository) List(ctx context.Context, query ProblemQuery) ([]models.Problem, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Problem{})

	if query.Difficulty != "" {
		db = db.Where("LOWER(difficulty) = ?", strings.ToLower(query.Difficulty))
	}

	if query.Search != "" {
		pattern := fmt.Sprintf("%%%s%%", strings.ToLower(query.Search))
		db = db.Where("LOWER(title) LIKE ? OR LOWER(statement) LIKE ?", pattern, pattern)
	}

	for _, tag := range query.Tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		db = db.Where("LOWER(tags) LIKE ?", fmt.Sprintf("%%%s%%", strings.ToLower(trimmed)))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var problems []models.Problem
	if err := db.Order("id ASC").Find(&problems).Error; err != nil {
		return nil, 0, err
	}

	return problems, total, nil
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

func (r *problemRepository) ListTestCases(ctx context.Context, problemID uint) ([]models.TestCase, error) {
	var cases []models.TestCase
	err := r.db.WithContext(ctx).
		Where("problem_id = ?", problemID).
		Order("position ASC").
		Order("id ASC").
		Find(&cases).Error
	if err != nil {
		return nil, err
	}
	return cases, nil
}

func (r *problemRepository) Create(ctx context.Context, problem *models.Problem, cases []models.TestCase) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("TestCases").Create(problem).Error; err != nil {
			return err
		}
		if len(cases) == 0 {
			return nil
		}
		for i := range cases {
			cases[i].ProblemID = problem.ID
			if cases[i].Position == 0 {
				cases[i].Position = i + 1
			}
		}
		if err := tx.Create(&cases).Error; err != nil {
			return err
		}
		problem.TestCases = cases
		return nil
	})
}

func (r *problemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Problem{}).Count(&count).Error
	return count, err
}
