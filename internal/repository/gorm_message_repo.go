package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var _ MessageRepository = (*GormMessageRepository)(nil)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-backed message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create stores msg. A missing id or timestamp is filled in.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = domain.NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Attachments == nil {
		msg.Attachments = []domain.Asset{}
	}
	if err := r.db.WithContext(ctx).Create(domain.MessageToModel(msg)).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrMessageExists
		}
		return err
	}
	return nil
}

func (r *GormMessageRepository) ListByChat(ctx context.Context, chatID string, offset, limit int) ([]*domain.Message, error) {
	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return messagesToDomain(models), nil
}

func (r *GormMessageRepository) CountByChat(ctx context.Context, chatID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).Where("chat_id = ?", chatID).Count(&n).Error
	return n, err
}

func (r *GormMessageRepository) CountGroupedByChat(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ChatID string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Select("chat_id, COUNT(*) AS total").
		Group("chat_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ChatID] = row.Total
	}
	return out, nil
}

func (r *GormMessageRepository) List(ctx context.Context) ([]*domain.Message, error) {
	var models []domain.MessageModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return messagesToDomain(models), nil
}

func (r *GormMessageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).Count(&n).Error
	return n, err
}

func (r *GormMessageRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("created_at >= ?", since.UTC()).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, len(models))
	for _, m := range models {
		times = append(times, m.CreatedAt)
	}
	return times, nil
}

func (r *GormMessageRepository) AttachmentsByChat(ctx context.Context, chatID string) ([]domain.Asset, error) {
	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Select("attachments").
		Where("chat_id = ?", chatID).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	var assets []domain.Asset
	for _, m := range models {
		assets = append(assets, m.Attachments.Data...)
	}
	return assets, nil
}

func messagesToDomain(models []domain.MessageModel) []*domain.Message {
	out := make([]*domain.Message, 0, len(models))
	for i := range models {
		out = append(out, models[i].ToDomain())
	}
	return out
}
