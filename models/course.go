package models

import "time"

// Question types supported by lesson quizzes.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionFillBlank      = "fill_blank"
)

// Course groups topics and lessons under a single subject owned by a teacher.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TeacherID   uint      `gorm:"index;not null" json:"teacher_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Subject     string    `gorm:"size:64" json:"subject"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Topics      []Topic   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"topics,omitempty"`
}

// Topic is an ordered section inside a course.
type Topic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Lessons   []Lesson  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"lessons,omitempty"`
}

// Lesson is the unit of study. Position within its topic determines unlock
// sequencing; XP is credited once on first completion.
type Lesson struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CourseID  uint       `gorm:"index;not null" json:"course_id"`
	TopicID   uint       `gorm:"index;not null" json:"topic_id"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Content   string     `gorm:"type:text" json:"content"`
	XP        int        `gorm:"not null;default:0" json:"xp"`
	Position  int        `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Questions []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"questions,omitempty"`
}

// Question belongs to a lesson quiz. Options is a JSON array of strings,
// empty for fill-in-the-blank questions.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LessonID  uint      `gorm:"index;not null" json:"lesson_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Type      string    `gorm:"size:32;not null;default:'multiple_choice'" json:"type"`
	Options   string    `gorm:"type:text" json:"options"`
	Answer    string    `gorm:"size:512" json:"-"`
	Hint      string    `gorm:"size:512" json:"-"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
