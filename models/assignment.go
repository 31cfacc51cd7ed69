package models

import "time"

// Assignment is teacher-authored course work with a due date.
type Assignment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	TeacherID uint      `gorm:"index;not null" json:"teacher_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Problem   string    `gorm:"type:text;not null" json:"problem"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Submission is a student's answer to an assignment. The composite unique
// index enforces at most one submission per user per assignment at the
// storage layer; a second insert fails with a duplicate-key error rather
// than silently overwriting.
type Submission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;uniqueIndex:uniq_assignment_user" json:"assignment_id"`
	UserID       uint      `gorm:"not null;uniqueIndex:uniq_assignment_user" json:"user_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	SubmittedAt  time.Time `gorm:"not null" json:"submitted_at"`
	Grade        *int      `json:"grade"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
