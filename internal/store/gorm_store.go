package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/pkg/log"
)

// GormStore persists message history through GORM, so it survives process
// restarts on any of the supported SQL backends.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Models returns the persistence models for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&domain.RoomMessageModel{},
		&domain.PrivateMessageModel{},
	}
}

func (s *GormStore) AppendRoomMessage(ctx context.Context, msg *domain.RoomMessage) error {
	l := log.Ctx(ctx)

	model := domain.RoomMessageToModel(msg)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to append room message")
		return fmt.Errorf("failed to append room message: %w", err)
	}
	return nil
}

func (s *GormStore) RecentRoomMessages(ctx context.Context, limit int) ([]domain.RoomMessage, error) {
	l := log.Ctx(ctx)

	query := s.db.WithContext(ctx).Model(&domain.RoomMessageModel{}).Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []domain.RoomMessageModel
	if err := query.Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to load recent room messages")
		return nil, fmt.Errorf("failed to load recent room messages: %w", err)
	}

	// Fetched newest-first; reverse into chronological order.
	out := make([]domain.RoomMessage, len(models))
	for i, model := range models {
		out[len(models)-1-i] = *model.ToDomain()
	}
	return out, nil
}

func (s *GormStore) AppendPrivateMessage(ctx context.Context, msg *domain.PrivateMessage) error {
	l := log.Ctx(ctx)

	model := domain.PrivateMessageToModel(msg)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to append private message")
		return fmt.Errorf("failed to append private message: %w", err)
	}
	return nil
}

func (s *GormStore) PrivateMessagesBetween(ctx context.Context, nameA, nameB string) ([]domain.PrivateMessage, error) {
	l := log.Ctx(ctx)

	var models []domain.PrivateMessageModel
	err := s.db.WithContext(ctx).
		Where("pair_key = ?", domain.PairKey(nameA, nameB)).
		Order("seq ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to load private messages")
		return nil, fmt.Errorf("failed to load private messages: %w", err)
	}

	out := make([]domain.PrivateMessage, len(models))
	for i, model := range models {
		out[i] = *model.ToDomain()
	}
	return out, nil
}
