package models

import "time"

// Sources for a daily challenge problem.
const (
	ChallengeAuthored  = "authored"
	ChallengeGenerated = "generated"
)

// DailyChallenge is a single shared problem for one calendar date. One row
// exists per DateKey; it is either authored by a teacher or generated on
// demand by the recommendation backend.
type DailyChallenge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DateKey   string    `gorm:"size:10;uniqueIndex;not null" json:"date_key"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Problem   string    `gorm:"type:text;not null" json:"problem"`
	Source    string    `gorm:"size:16;not null;default:'authored'" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// ChallengeComment is a discussion reply under a daily challenge.
type ChallengeComment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"index;not null" json:"challenge_id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}

// ChallengeSubmission mirrors Submission for the shared daily problem,
// with the same one-per-user storage-level uniqueness.
type ChallengeSubmission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"not null;uniqueIndex:uniq_challenge_user" json:"challenge_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:uniq_challenge_user" json:"user_id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`
	Grade       *int      `json:"grade"`
	Feedback    string    `gorm:"type:text" json:"feedback"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
