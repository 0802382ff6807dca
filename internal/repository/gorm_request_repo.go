package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var _ RequestRepository = (*GormRequestRepository)(nil)

// GormRequestRepository implements RequestRepository using GORM.
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GORM-backed friend request repository.
func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

func (r *GormRequestRepository) Create(ctx context.Context, req *domain.FriendRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = domain.RequestPending
	}

	model := domain.RequestToModel(req)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	req.CreatedAt = model.CreatedAt
	req.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormRequestRepository) GetByID(ctx context.Context, id string) (*domain.FriendRequest, error) {
	var model domain.RequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormRequestRepository) FindPendingBetween(ctx context.Context, a, b string) (*domain.FriendRequest, error) {
	var model domain.RequestModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.RequestPending).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormRequestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.RequestModel{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *GormRequestRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.RequestModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *GormRequestRepository) ListPendingFor(ctx context.Context, receiverID string) ([]*domain.FriendRequest, error) {
	var models []domain.RequestModel
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", receiverID, domain.RequestPending).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.FriendRequest, 0, len(models))
	for i := range models {
		out = append(out, models[i].ToDomain())
	}
	return out, nil
}
