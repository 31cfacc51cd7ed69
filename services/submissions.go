package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/openlearnhq/studypath/models"
)

// SubmissionService records assignment and daily-challenge submissions and
// supports grading. The at-most-once guarantee lives in the storage layer:
// a composite unique index turns a second submit into a duplicate-key error
// which is translated to ErrDuplicateSubmission here.
type SubmissionService struct {
	db         *gorm.DB
	minContent int
}

// NewSubmissionService creates a submission service. minContent is the
// minimum number of characters accepted as submission content.
func NewSubmissionService(db *gorm.DB, minContent int) *SubmissionService {
	if minContent <= 0 {
		minContent = 1
	}
	return &SubmissionService{db: db, minContent: minContent}
}

func (s *SubmissionService) validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if len([]rune(content)) < s.minContent {
		return "", fmt.Errorf("%w: content must be at least %d characters", ErrValidation, s.minContent)
	}
	return content, nil
}

// SubmitAssignment stores a student's answer. A single insert, no
// transaction needed: there is no multi-step invariant beyond the unique
// (assignment, user) pair.
func (s *SubmissionService) SubmitAssignment(ctx context.Context, assignmentID, userID uint, content string, now time.Time) (*models.Submission, error) {
	content, err := s.validateContent(content)
	if err != nil {
		return nil, err
	}

	var assignment models.Assignment
	if err := s.db.WithContext(ctx).First(&assignment, assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}
		return nil, err
	}

	sub := models.Submission{
		AssignmentID: assignmentID,
		UserID:       userID,
		Content:      content,
		SubmittedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: assignment %d", ErrDuplicateSubmission, assignmentID)
		}
		return nil, err
	}
	return &sub, nil
}

// SubmitChallenge mirrors SubmitAssignment for the shared daily problem.
func (s *SubmissionService) SubmitChallenge(ctx context.Context, challengeID, userID uint, content string, now time.Time) (*models.ChallengeSubmission, error) {
	content, err := s.validateContent(content)
	if err != nil {
		return nil, err
	}

	var challenge models.DailyChallenge
	if err := s.db.WithContext(ctx).First(&challenge, challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: challenge %d", ErrNotFound, challengeID)
		}
		return nil, err
	}

	sub := models.ChallengeSubmission{
		ChallengeID: challengeID,
		UserID:      userID,
		Content:     content,
		SubmittedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: challenge %d", ErrDuplicateSubmission, challengeID)
		}
		return nil, err
	}
	return &sub, nil
}

func validGrade(grade int) error {
	if grade < 0 || grade > 100 {
		return fmt.Errorf("%w: grade %d out of range [0,100]", ErrValidation, grade)
	}
	return nil
}

// GradeSubmission sets grade and feedback on an assignment submission.
// Re-grading is allowed: the write is unconditional, last write wins.
func (s *SubmissionService) GradeSubmission(ctx context.Context, submissionID uint, grade int, feedback string) (*models.Submission, error) {
	if err := validGrade(grade); err != nil {
		return nil, err
	}

	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: submission %d", ErrNotFound, submissionID)
		}
		return nil, err
	}

	sub.Grade = &grade
	sub.Feedback = feedback
	if err := s.db.WithContext(ctx).Model(&sub).
		Select("grade", "feedback").
		Updates(map[string]interface{}{"grade": grade, "feedback": feedback}).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GradeChallengeSubmission sets grade and feedback on a daily-challenge
// submission, with the same last-write-wins semantics.
func (s *SubmissionService) GradeChallengeSubmission(ctx context.Context, submissionID uint, grade int, feedback string) (*models.ChallengeSubmission, error) {
	if err := validGrade(grade); err != nil {
		return nil, err
	}

	var sub models.ChallengeSubmission
	if err := s.db.WithContext(ctx).First(&sub, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: challenge submission %d", ErrNotFound, submissionID)
		}
		return nil, err
	}

	sub.Grade = &grade
	sub.Feedback = feedback
	if err := s.db.WithContext(ctx).Model(&sub).
		Select("grade", "feedback").
		Updates(map[string]interface{}{"grade": grade, "feedback": feedback}).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
