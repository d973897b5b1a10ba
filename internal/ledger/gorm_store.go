package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	dbpkg "crabstack.local/projects/crab-bridge/internal/db"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(driver, dsn string) (*GormStore, error) {
	gormDB, err := dbpkg.OpenGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	store := &GormStore{db: gormDB}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *GormStore) migrate() error {
	return s.db.AutoMigrate(&conversationRow{}, &entryRow{})
}

func (s *GormStore) SaveEntry(ctx context.Context, conversationID string, entry Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&entryRow{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("sequence lookup: %w", err)
		}

		row := entryRow{
			EntryID:        entry.ID,
			ConversationID: conversationID,
			Sequence:       maxSeq + 1,
			Role:           entry.Role,
			Content:        entry.Content,
			AuthorName:     entry.AuthorName,
			AuthorID:       entry.AuthorID,
			CreatedAt:      entry.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create entry: %w", err)
		}

		conv := conversationRow{
			ConversationID: conversationID,
			LastUpdated:    time.Now().UTC(),
		}
		if err := tx.Save(&conv).Error; err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		return nil
	})
}

func (s *GormStore) LoadRecent(ctx context.Context, perConversation int) (map[string][]Entry, error) {
	var rows []entryRow
	if err := s.db.WithContext(ctx).
		Order("conversation_id ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	out := make(map[string][]Entry)
	for _, row := range rows {
		out[row.ConversationID] = append(out[row.ConversationID], row.toEntry())
	}
	if perConversation > 0 {
		for id, entries := range out {
			if len(entries) > perConversation {
				out[id] = append([]Entry(nil), entries[len(entries)-perConversation:]...)
			}
		}
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}
