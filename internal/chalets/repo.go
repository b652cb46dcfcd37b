package chalets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/chalets-backend/internal/repo"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	"github.com/angelmondragon/chalets-backend/pkg/pagination"
)

// Repository exposes chalet persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, chalet *models.Chalet) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Chalet, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Chalet, error)
	Save(ctx context.Context, chalet *models.Chalet) error
	CountOpenBookings(ctx context.Context, chaletID uuid.UUID) (int64, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Chalet, int64, error)
}

// ListFilter narrows chalet listings.
type ListFilter struct {
	OwnerID    *uuid.UUID
	ActiveOnly bool
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, chalet *models.Chalet) error {
	return r.DB(ctx).Create(chalet).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Chalet, error) {
	var chalet models.Chalet
	if err := r.DB(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&chalet).Error; err != nil {
		return nil, err
	}
	return &chalet, nil
}

// LockByID loads the chalet with FOR UPDATE, serializing writers per chalet.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Chalet, error) {
	var chalet models.Chalet
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&chalet).Error
	if err != nil {
		return nil, err
	}
	return &chalet, nil
}

func (r *repository) Save(ctx context.Context, chalet *models.Chalet) error {
	return r.DB(ctx).Save(chalet).Error
}

func (r *repository) CountOpenBookings(ctx context.Context, chaletID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Booking{}).
		Where("chalet_id = ?", chaletID).
		Where("status IN ?", []enums.BookingStatus{enums.BookingStatusPending, enums.BookingStatusConfirmed}).
		Count(&count).Error
	return count, err
}

func (r *repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Chalet, int64, error) {
	q := r.DB(ctx).Model(&models.Chalet{}).Where("deleted_at IS NULL")
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Chalet
	err := q.Order("created_at DESC, id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&rows).Error
	return rows, total, err
}
