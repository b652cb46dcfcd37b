package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/chalets-backend/internal/repo"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	Insert(ctx context.Context, review *models.Review) error
	LockByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	Approve(ctx context.Context, id uuid.UUID) error
	ListApproved(ctx context.Context, chaletID uuid.UUID) ([]models.Review, error)
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

func (r *repository) FindBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.DB(ctx).Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) Insert(ctx context.Context, review *models.Review) error {
	return r.DB(ctx).Create(review).Error
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) Approve(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Model(&models.Review{}).Where("id = ?", id).Update("is_approved", true).Error
}

func (r *repository) ListApproved(ctx context.Context, chaletID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.DB(ctx).
		Where("chalet_id = ? AND is_approved = ?", chaletID, true).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, err
}
