package payments

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

// Repository exposes payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	FindBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	FindChalet(ctx context.Context, chaletID uuid.UUID) (*models.Chalet, error)
	HasCompleted(ctx context.Context, bookingID uuid.UUID, exclude uuid.UUID) (bool, error)
	Insert(ctx context.Context, payment *models.Payment) error
	Save(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	LockByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	Events(ctx context.Context, paymentID uuid.UUID, kinds ...enums.PaymentEventKind) ([]models.PaymentEvent, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Payment, int64, error)
	StalePending(ctx context.Context, method enums.PaymentMethod, createdBefore time.Time, limit int) ([]models.Payment, error)
}

// ListFilter narrows payment listings. CustomerID and OwnerID are set from
// the caller's role.
type ListFilter struct {
	CustomerID *uuid.UUID
	OwnerID    *uuid.UUID
	BookingID  *uuid.UUID
	Status     *enums.PaymentStatus
	Method     *enums.PaymentMethod
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

func (r *repository) LockBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", bookingID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.DB(ctx).Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindChalet(ctx context.Context, chaletID uuid.UUID) (*models.Chalet, error) {
	var chalet models.Chalet
	if err := r.DB(ctx).Where("id = ?", chaletID).First(&chalet).Error; err != nil {
		return nil, err
	}
	return &chalet, nil
}

func (r *repository) HasCompleted(ctx context.Context, bookingID uuid.UUID, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Payment{}).
		Where("booking_id = ? AND status = ? AND id <> ?", bookingID, enums.PaymentStatusCompleted, exclude).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Insert(ctx context.Context, payment *models.Payment) error {
	return r.DB(ctx).Create(payment).Error
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.DB(ctx).Save(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).Where("external_id = ?", externalID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) LockByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_id = ?", externalID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Events(ctx context.Context, paymentID uuid.UUID, kinds ...enums.PaymentEventKind) ([]models.PaymentEvent, error) {
	q := r.DB(ctx).Where("payment_id = ?", paymentID)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	var rows []models.PaymentEvent
	err := q.Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Payment, int64, error) {
	q := r.DB(ctx).Model(&models.Payment{})
	if filter.CustomerID != nil {
		q = q.Where("payments.booking_id IN (?)",
			r.DB(ctx).Model(&models.Booking{}).Select("id").Where("customer_id = ?", *filter.CustomerID))
	}
	if filter.OwnerID != nil {
		chalets := r.DB(ctx).Model(&models.Chalet{}).Select("id").Where("owner_id = ?", *filter.OwnerID)
		q = q.Where("payments.booking_id IN (?)",
			r.DB(ctx).Model(&models.Booking{}).Select("id").Where("chalet_id IN (?)", chalets))
	}
	if filter.BookingID != nil {
		q = q.Where("payments.booking_id = ?", *filter.BookingID)
	}
	if filter.Status != nil {
		q = q.Where("payments.status = ?", *filter.Status)
	}
	if filter.Method != nil {
		q = q.Where("payments.method = ?", *filter.Method)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Payment
	err := q.Order("payments.created_at DESC, payments.id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&rows).Error
	return rows, total, err
}

// StalePending returns pending payments that already carry a gateway id and
// were created before the cutoff.
func (r *repository) StalePending(ctx context.Context, method enums.PaymentMethod, createdBefore time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.DB(ctx).
		Where("status = ? AND method = ? AND external_id IS NOT NULL AND created_at < ?",
			enums.PaymentStatusPending, method, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
