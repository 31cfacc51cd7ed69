package models

import "time"

// Attachment is an uploaded file referenced from submissions. Rows past
// ExpiresAt are removed by the background cleaner together with the file.
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	ObjectName   string    `gorm:"size:128;uniqueIndex;not null" json:"object_name"`
	OriginalName string    `gorm:"size:255" json:"original_name"`
	FilePath     string    `gorm:"size:512" json:"-"`
	SizeBytes    int64     `json:"size_bytes"`
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
