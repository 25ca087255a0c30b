package domain

import "time"

// InboxRecord is proof that a broker message was processed. The unique index
// over (consumer_group, topic, partition, offset) is the dedup gate: inserting
// it in the same transaction as the side effect makes consumption idempotent.
type InboxRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ConsumerGroup string    `gorm:"size:128;not null;uniqueIndex:ux_inbox_message" json:"consumer_group"`
	Topic         string    `gorm:"size:128;not null;uniqueIndex:ux_inbox_message" json:"topic"`
	Partition     int       `gorm:"not null;uniqueIndex:ux_inbox_message" json:"partition"`
	Offset        int64     `gorm:"not null;uniqueIndex:ux_inbox_message" json:"offset"`
	ProcessedAt   time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

func (InboxRecord) TableName() string { return "consumer_inbox" }
