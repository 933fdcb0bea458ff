package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MessageRow is the relational form of a Message; Position keeps ledger order.
type MessageRow struct {
	Position  int       `gorm:"primaryKey;autoIncrement:false"`
	ID        string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	Author    string    `gorm:"not null"`
	Timestamp time.Time `gorm:"not null"`
	Kind      string    `gorm:"type:varchar(16);not null"`
	Content   string    `gorm:"type:text;not null"`
	FileName  string    `gorm:"type:varchar(255)"`
	URL       string    `gorm:"type:text"`
	IsDeleted bool      `gorm:"not null;default:false"`
}

func (MessageRow) TableName() string {
	return "history_messages"
}

// PostgresRepository rewrites the history table inside one transaction per
// save, matching the whole-document semantics of the other repositories.
type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Name() string {
	return "postgres:" + MessageRow{}.TableName()
}

func (r *PostgresRepository) Load(ctx context.Context) ([]Message, error) {
	var rows []MessageRow
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoSnapshot
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, Message{
			ID:        row.ID,
			Author:    row.Author,
			Timestamp: row.Timestamp,
			Kind:      Kind(row.Kind),
			Content:   row.Content,
			FileName:  row.FileName,
			URL:       row.URL,
			IsDeleted: row.IsDeleted,
		})
	}
	return messages, nil
}

func (r *PostgresRepository) Save(ctx context.Context, messages []Message) error {
	rows := make([]MessageRow, 0, len(messages))
	for i, msg := range messages {
		rows = append(rows, MessageRow{
			Position:  i,
			ID:        msg.ID,
			Author:    msg.Author,
			Timestamp: msg.Timestamp,
			Kind:      string(msg.Kind),
			Content:   msg.Content,
			FileName:  msg.FileName,
			URL:       msg.URL,
			IsDeleted: msg.IsDeleted,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&MessageRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("%w: postgres: %v", ErrPersistence, err)
	}
	return nil
}
