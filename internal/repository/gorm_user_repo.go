package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var _ UserRepository = (*GormUserRepository)(nil)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user.
func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	model := domain.UserToModel(user)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return err
	}

	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves a user by ID.
func (r *GormUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetByUsername retrieves a user by username.
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for i := range models {
		out[models[i].ID] = models[i].ToDomain()
	}
	return out, nil
}

func (r *GormUserRepository) Search(ctx context.Context, query string, excludeIDs []string) ([]*domain.User, error) {
	q := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '!'", likePattern(query))
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}

	var models []domain.UserModel
	if err := q.Order("username ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return usersToDomain(models), nil
}

func (r *GormUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return usersToDomain(models), nil
}

func (r *GormUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).Count(&n).Error
	return n, err
}

func usersToDomain(models []domain.UserModel) []*domain.User {
	users := make([]*domain.User, 0, len(models))
	for i := range models {
		users = append(users, models[i].ToDomain())
	}
	return users
}
