package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/openlearnhq/studypath/models"
)

// Recommendation is the typed contract of the next-lesson oracle. Both ids
// may be absent when the model has nothing to suggest.
type Recommendation struct {
	LessonID  *uint  `json:"lesson_id,omitempty"`
	CourseID  *uint  `json:"course_id,omitempty"`
	Reasoning string `json:"reasoning"`
}

// RecommendationOracle suggests what a student should study next. Callers
// must tolerate ErrOracleUnavailable and degrade to "no recommendation".
type RecommendationOracle interface {
	Recommend(ctx context.Context, userID uint) (*Recommendation, error)
}

// HintOracle produces a tutoring hint for a quiz question without revealing
// the answer. Callers fall back to the authored hint on failure.
type HintOracle interface {
	Hint(ctx context.Context, question models.Question) (string, error)
}

// InsightStats is the classroom aggregate handed to the insight oracle.
type InsightStats struct {
	Students         int     `json:"students"`
	LessonsCompleted int64   `json:"lessons_completed_7d"`
	Submissions      int64   `json:"submissions_7d"`
	AverageGrade     float64 `json:"average_grade"`
	ActiveStudents   int     `json:"active_students_7d"`
}

// InsightOracle summarizes classroom activity for the teacher dashboard.
type InsightOracle interface {
	Summarize(ctx context.Context, stats InsightStats) (string, error)
}

// ChallengeOracle generates the shared daily problem when no teacher
// authored one for the date.
type ChallengeOracle interface {
	GenerateChallenge(ctx context.Context, dateKey string) (title, problem string, err error)
}

// LessonDraftOracle drafts lesson body text for a teacher to edit. Drafts
// are never stored directly; the teacher reviews and saves explicitly.
type LessonDraftOracle interface {
	DraftLesson(ctx context.Context, courseTitle, lessonTitle, outline string) (string, error)
}

// AIOracle implements all oracle interfaces on top of the chat client,
// grounding prompts in the user's stored progress.
type AIOracle struct {
	db     *gorm.DB
	client *ChatClient
}

// NewAIOracle wires the oracle to storage and the chat client.
func NewAIOracle(db *gorm.DB, client *ChatClient) *AIOracle {
	return &AIOracle{db: db, client: client}
}

type candidate struct {
	LessonID    uint   `json:"lesson_id"`
	CourseID    uint   `json:"course_id"`
	CourseTitle string `json:"course_title"`
	LessonTitle string `json:"lesson_title"`
	XP          int    `json:"xp"`
}

// Recommend computes the unlocked-but-uncompleted frontier per course and
// asks the model to pick one. The frontier itself is deterministic decision
// logic; the model only chooses among valid candidates, so a hallucinated id
// can never escape (the reply is validated against the candidate set).
func (o *AIOracle) Recommend(ctx context.Context, userID uint) (*Recommendation, error) {
	candidates, err := o.nextLessonCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Recommendation{Reasoning: "all available lessons are completed"}, nil
	}

	payload, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	system := "You are a study coach for an online learning platform. " +
		"Given candidate next lessons as JSON, pick the single best one for the student to continue with. " +
		`Reply with a JSON object {"lesson_id": <id>, "course_id": <id>, "reasoning": "<one sentence>"}.`
	reply, err := o.client.CompleteJSON(ctx, system, string(payload))
	if err != nil {
		return nil, err
	}

	var rec Recommendation
	if err := json.Unmarshal([]byte(reply), &rec); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", ErrOracleUnavailable, err)
	}
	if rec.LessonID == nil || !validCandidate(candidates, *rec.LessonID) {
		// Model picked outside the frontier: fall back to the first candidate
		rec.LessonID = &candidates[0].LessonID
		rec.CourseID = &candidates[0].CourseID
		if rec.Reasoning == "" {
			rec.Reasoning = "continue where you left off"
		}
	}
	return &rec, nil
}

func validCandidate(candidates []candidate, lessonID uint) bool {
	for _, c := range candidates {
		if c.LessonID == lessonID {
			return true
		}
	}
	return false
}

// nextLessonCandidates returns, per course, the first lesson in authored
// order that is unlocked but not completed for the user.
func (o *AIOracle) nextLessonCandidates(ctx context.Context, userID uint) ([]candidate, error) {
	var courses []models.Course
	err := o.db.WithContext(ctx).
		Preload("Topics", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Topics.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Find(&courses).Error
	if err != nil {
		return nil, err
	}

	var ids []uint
	if err := o.db.WithContext(ctx).Model(&models.Progress{}).
		Where("user_id = ?", userID).
		Pluck("lesson_id", &ids).Error; err != nil {
		return nil, err
	}
	completed := make(map[uint]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}

	var out []candidate
	for i := range courses {
		ordered := OrderedLessons(&courses[i])
		next := NextUncompletedLesson(ordered, completed)
		if next == nil {
			continue
		}
		out = append(out, candidate{
			LessonID:    next.ID,
			CourseID:    courses[i].ID,
			CourseTitle: courses[i].Title,
			LessonTitle: next.Title,
			XP:          next.XP,
		})
	}
	return out, nil
}

// Hint asks the model for a nudge toward the answer. The authored hint and
// the answer travel in the prompt so the model can steer without leaking.
func (o *AIOracle) Hint(ctx context.Context, question models.Question) (string, error) {
	system := "You are a patient tutor. Give a single short hint that helps the student " +
		"toward the answer without stating it. Never include the answer text."
	user := fmt.Sprintf("Question: %s\nKnown answer (do not reveal): %s\nAuthored hint: %s",
		question.Text, question.Answer, question.Hint)

	hint, err := o.client.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(hint) == "" {
		return "", fmt.Errorf("%w: empty hint", ErrOracleUnavailable)
	}
	return hint, nil
}

// Summarize turns classroom aggregates into a short natural-language
// paragraph for the teacher dashboard.
func (o *AIOracle) Summarize(ctx context.Context, stats InsightStats) (string, error) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	system := "You are an assistant for teachers. Summarize the classroom activity numbers " +
		"in at most three sentences, highlighting anything that needs attention."
	return o.client.Complete(ctx, system, string(payload))
}

// GenerateChallenge produces a daily practice problem for the given date.
func (o *AIOracle) GenerateChallenge(ctx context.Context, dateKey string) (string, string, error) {
	system := "You create one short daily practice problem for students of mixed levels. " +
		`Reply with a JSON object {"title": "...", "problem": "..."}.`
	reply, err := o.client.CompleteJSON(ctx, system, "Date: "+dateKey)
	if err != nil {
		return "", "", err
	}
	var out struct {
		Title   string `json:"title"`
		Problem string `json:"problem"`
	}
	if err := json.Unmarshal([]byte(reply), &out); err != nil {
		return "", "", fmt.Errorf("%w: malformed reply: %v", ErrOracleUnavailable, err)
	}
	if out.Title == "" || out.Problem == "" {
		return "", "", fmt.Errorf("%w: incomplete challenge", ErrOracleUnavailable)
	}
	return out.Title, out.Problem, nil
}

// DraftLesson produces lesson body text from a title and optional outline.
func (o *AIOracle) DraftLesson(ctx context.Context, courseTitle, lessonTitle, outline string) (string, error) {
	system := "You write lesson content for an online learning platform. " +
		"Produce clear, structured prose a teacher can edit, no front matter."
	user := fmt.Sprintf("Course: %s\nLesson: %s", courseTitle, lessonTitle)
	if strings.TrimSpace(outline) != "" {
		user += "\nOutline:\n" + outline
	}

	draft, err := o.client.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(draft) == "" {
		return "", fmt.Errorf("%w: empty draft", ErrOracleUnavailable)
	}
	return draft, nil
}

// WithDeadline derives a child context bounded for oracle work; callers use
// it so a slow oracle can never hold a request beyond the budget.
func WithDeadline(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		budget = 8 * time.Second
	}
	return context.WithTimeout(ctx, budget)
}
