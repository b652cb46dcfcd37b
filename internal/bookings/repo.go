package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/chalets-backend/internal/repo"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	"github.com/angelmondragon/chalets-backend/pkg/pagination"
)

// Repository exposes booking persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockChalet(ctx context.Context, chaletID uuid.UUID) (*models.Chalet, error)
	FindChalet(ctx context.Context, chaletID uuid.UUID) (*models.Chalet, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Insert(ctx context.Context, booking *models.Booking) error
	InsertExtras(ctx context.Context, extras []models.BookingExtra) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByNumber(ctx context.Context, number string) (*models.Booking, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus) error
	Extras(ctx context.Context, bookingID uuid.UUID) ([]models.BookingExtra, error)
	Events(ctx context.Context, bookingID uuid.UUID) ([]models.BookingEvent, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Booking, int64, error)
	DueForCompletion(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

// ListFilter narrows booking listings. The visibility fields are set by the
// service from the caller's role, never from request input.
type ListFilter struct {
	CustomerID *uuid.UUID
	OwnerID    *uuid.UUID
	ChaletID   *uuid.UUID
	Status     *enums.BookingStatus
	From       *time.Time
	To         *time.Time
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

func (r *repository) LockChalet(ctx context.Context, chaletID uuid.UUID) (*models.Chalet, error) {
	var chalet models.Chalet
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", chaletID).
		First(&chalet).Error
	if err != nil {
		return nil, err
	}
	return &chalet, nil
}

func (r *repository) FindChalet(ctx context.Context, chaletID uuid.UUID) (*models.Chalet, error) {
	var chalet models.Chalet
	if err := r.DB(ctx).Where("id = ?", chaletID).First(&chalet).Error; err != nil {
		return nil, err
	}
	return &chalet, nil
}

func (r *repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Booking{}).Where("booking_number = ?", number).Count(&count).Error
	return count > 0, err
}

func (r *repository) Insert(ctx context.Context, booking *models.Booking) error {
	return r.DB(ctx).Create(booking).Error
}

func (r *repository) InsertExtras(ctx context.Context, extras []models.BookingExtra) error {
	if len(extras) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&extras).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.DB(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.DB(ctx).Where("booking_number = ?", number).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus) error {
	return r.DB(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) Extras(ctx context.Context, bookingID uuid.UUID) ([]models.BookingExtra, error) {
	var rows []models.BookingExtra
	err := r.DB(ctx).Where("booking_id = ?", bookingID).Order("created_at ASC, name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) Events(ctx context.Context, bookingID uuid.UUID) ([]models.BookingEvent, error) {
	var rows []models.BookingEvent
	err := r.DB(ctx).Where("booking_id = ?", bookingID).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Booking, int64, error) {
	q := r.DB(ctx).Model(&models.Booking{})
	if filter.CustomerID != nil {
		q = q.Where("bookings.customer_id = ?", *filter.CustomerID)
	}
	if filter.OwnerID != nil {
		q = q.Where("bookings.chalet_id IN (?)",
			r.DB(ctx).Model(&models.Chalet{}).Select("id").Where("owner_id = ?", *filter.OwnerID))
	}
	if filter.ChaletID != nil {
		q = q.Where("bookings.chalet_id = ?", *filter.ChaletID)
	}
	if filter.Status != nil {
		q = q.Where("bookings.status = ?", *filter.Status)
	}
	if filter.From != nil {
		q = q.Where("bookings.check_in >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("bookings.check_out <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Booking
	err := q.Order("bookings.created_at DESC, bookings.id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&rows).Error
	return rows, total, err
}

// DueForCompletion returns confirmed bookings whose check-out is on or before
// the given day.
func (r *repository) DueForCompletion(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.Booking{}).
		Where("status = ? AND check_out <= ?", enums.BookingStatusConfirmed, before).
		Order("check_out ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
