package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var _ ChatRepository = (*GormChatRepository)(nil)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-backed chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// Create inserts the chat and its member rows in one transaction.
func (r *GormChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	model := domain.ChatToModel(chat)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := model.Members
		model.Members = nil
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(members) > 0 {
			if err := tx.Create(&members).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrAlreadyMember
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	chat.CreatedAt = model.CreatedAt
	chat.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves a chat with its members.
func (r *GormChatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	var model domain.ChatModel
	err := r.db.WithContext(ctx).Preload("Members").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormChatRepository) ListForMember(ctx context.Context, userID string, kind ChatKind) ([]*domain.Chat, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&domain.ChatMemberModel{}).Select("chat_id").Where("user_id = ?", userID)

	q := withKind(db.Preload("Members").Where("id IN (?)", sub), kind)

	var models []domain.ChatModel
	if err := q.Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return chatsToDomain(models), nil
}

func (r *GormChatRepository) UpdateName(ctx context.Context, id, name string) error {
	result := r.db.WithContext(ctx).Model(&domain.ChatModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// AddMembers appends userIDs after the current last member.
func (r *GormChatRepository) AddMembers(ctx context.Context, id string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touch(tx, id); err != nil {
			return err
		}

		var last struct{ LastPosition *int }
		if err := tx.Model(&domain.ChatMemberModel{}).
			Select("MAX(position) AS last_position").
			Where("chat_id = ?", id).
			Scan(&last).Error; err != nil {
			return err
		}
		offset := 0
		if last.LastPosition != nil {
			offset = *last.LastPosition + 1
		}

		rows := domain.MemberRows(id, userIDs, offset)
		if err := tx.Create(&rows).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyMember
			}
			return err
		}
		return nil
	})
}

func (r *GormChatRepository) RemoveMember(ctx context.Context, id, userID, newCreatorID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("chat_id = ? AND user_id = ?", id, userID).Delete(&domain.ChatMemberModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotMember
		}

		updates := map[string]interface{}{"updated_at": time.Now().UTC()}
		if newCreatorID != "" {
			updates["creator_id"] = newCreatorID
		}
		return tx.Model(&domain.ChatModel{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (r *GormChatRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&domain.MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&domain.ChatMemberModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.ChatModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrChatNotFound
		}
		return nil
	})
}

func (r *GormChatRepository) List(ctx context.Context) ([]*domain.Chat, error) {
	var models []domain.ChatModel
	if err := r.db.WithContext(ctx).Preload("Members").Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return chatsToDomain(models), nil
}

func (r *GormChatRepository) Count(ctx context.Context, kind ChatKind) (int64, error) {
	var n int64
	err := withKind(r.db.WithContext(ctx).Model(&domain.ChatModel{}), kind).Count(&n).Error
	return n, err
}

func (r *GormChatRepository) MembershipCounts(ctx context.Context) (map[string]MembershipCount, error) {
	var rows []struct {
		UserID      string
		GroupCount  int64
		DirectCount int64
	}
	err := r.db.WithContext(ctx).
		Table("chat_members").
		Select("chat_members.user_id AS user_id, "+
			"SUM(CASE WHEN chats.group_chat = ? THEN 1 ELSE 0 END) AS group_count, "+
			"SUM(CASE WHEN chats.group_chat = ? THEN 0 ELSE 1 END) AS direct_count", true, true).
		Joins("JOIN chats ON chats.id = chat_members.chat_id").
		Group("chat_members.user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]MembershipCount, len(rows))
	for _, row := range rows {
		out[row.UserID] = MembershipCount{Groups: row.GroupCount, Friends: row.DirectCount}
	}
	return out, nil
}

func touch(tx *gorm.DB, id string) error {
	result := tx.Model(&domain.ChatModel{}).Where("id = ?", id).Update("updated_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

func withKind(q *gorm.DB, kind ChatKind) *gorm.DB {
	switch kind {
	case ChatKindGroup:
		return q.Where("group_chat = ?", true)
	case ChatKindDirect:
		return q.Where("group_chat = ?", false)
	default:
		return q
	}
}

func chatsToDomain(models []domain.ChatModel) []*domain.Chat {
	chats := make([]*domain.Chat, 0, len(models))
	for i := range models {
		chats = append(chats, models[i].ToDomain())
	}
	return chats
}
