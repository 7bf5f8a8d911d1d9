package plans

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Repository persists catalog plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, plan *models.Plan) error
	Update(ctx context.Context, plan *models.Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error)
	List(ctx context.Context, query ListQuery) ([]models.Plan, error)
}

// ListQuery filters catalog listings.
type ListQuery struct {
	Status *enums.PlanStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plans repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, plan *models.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) Update(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	return r.first(ctx, "tier = ?", tier)
}

// List returns plans ordered FREE, PRO, BUSINESS, CUSTOM.
func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Plan, error) {
	q := r.db.WithContext(ctx).Model(&models.Plan{})
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	var rows []models.Plan
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Tier.Rank() < rows[j].Tier.Rank()
	})
	return rows, nil
}

func (r *repository) first(ctx context.Context, where string, arg any) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where(where, arg).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
