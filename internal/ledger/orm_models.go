package ledger

import "time"

type conversationRow struct {
	ConversationID string    `gorm:"primaryKey;size:191"`
	LastUpdated    time.Time `gorm:"not null"`
}

func (conversationRow) TableName() string {
	return "conversations"
}

type entryRow struct {
	EntryID        string    `gorm:"primaryKey;size:64"`
	ConversationID string    `gorm:"size:191;uniqueIndex:idx_entries_conv_seq,priority:1"`
	Sequence       int64     `gorm:"not null;uniqueIndex:idx_entries_conv_seq,priority:2"`
	Role           string    `gorm:"size:32;not null"`
	Content        string    `gorm:"type:text;not null"`
	AuthorName     string    `gorm:"size:191"`
	AuthorID       string    `gorm:"size:191"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (entryRow) TableName() string {
	return "conversation_entries"
}

func (r entryRow) toEntry() Entry {
	return Entry{
		ID:         r.EntryID,
		Role:       r.Role,
		Content:    r.Content,
		AuthorName: r.AuthorName,
		AuthorID:   r.AuthorID,
		CreatedAt:  r.CreatedAt,
	}
}
