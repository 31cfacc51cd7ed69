package models

import "time"

// Progress records a completed lesson. The composite unique index makes the
// completion insert idempotent: re-completing a lesson never duplicates the
// row or double-counts XP.
type Progress struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:uniq_user_lesson" json:"user_id"`
	LessonID    uint      `gorm:"not null;uniqueIndex:uniq_user_lesson" json:"lesson_id"`
	XPEarned    int       `gorm:"not null;default:0" json:"xp_earned"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
}

// StreakDay marks that a user performed a qualifying action on a calendar
// date. DateKey is the local date formatted as 2006-01-02. Streak length is
// always derived from these rows, never cached on the user.
type StreakDay struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uniq_user_day" json:"user_id"`
	DateKey   string    `gorm:"size:10;not null;uniqueIndex:uniq_user_day" json:"date_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Badge is an achievement tied to completing work in a course.
type Badge struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    uint      `gorm:"index;not null" json:"course_id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	Icon        string    `gorm:"size:512" json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
}

// BadgeAward records the first time a user qualified for a badge. Awarding
// is idempotent through the unique pair.
type BadgeAward struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uniq_user_badge" json:"user_id"`
	BadgeID   uint      `gorm:"not null;uniqueIndex:uniq_user_badge" json:"badge_id"`
	AwardedAt time.Time `gorm:"not null" json:"awarded_at"`
	Badge     Badge     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"badge"`
}

// DateKey formats a time as a streak date key in its own location.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
