package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openlearnhq/studypath/models"
)

func seedAssignment(t *testing.T, db *gorm.DB) models.Assignment {
	t.Helper()
	a := models.Assignment{
		CourseID:  1,
		TeacherID: 1,
		Title:     "Essay on photosynthesis",
		Problem:   "Explain how plants convert light into energy.",
		DueAt:     time.Now().AddDate(0, 0, 7),
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

const answer = "Plants capture light with chlorophyll and fix carbon into sugars."

func TestSubmitAssignmentOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)
	a := seedAssignment(t, db)
	now := time.Now()

	sub, err := svc.SubmitAssignment(context.Background(), a.ID, 7, answer, now)
	require.NoError(t, err)
	assert.Equal(t, answer, sub.Content)
	assert.Nil(t, sub.Grade)

	_, err = svc.SubmitAssignment(context.Background(), a.ID, 7, "A different answer entirely.", now.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateSubmission))

	// The first submission is untouched and remains the only row.
	var rows []models.Submission
	require.NoError(t, db.Where("assignment_id = ?", a.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, answer, rows[0].Content)
}

func TestSubmitAssignmentDifferentUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)
	a := seedAssignment(t, db)
	now := time.Now()

	_, err := svc.SubmitAssignment(context.Background(), a.ID, 7, answer, now)
	require.NoError(t, err)
	_, err = svc.SubmitAssignment(context.Background(), a.ID, 8, answer, now)
	require.NoError(t, err)

	var rows int64
	require.NoError(t, db.Model(&models.Submission{}).Where("assignment_id = ?", a.ID).Count(&rows).Error)
	assert.EqualValues(t, 2, rows)
}

func TestSubmitAssignmentValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)
	a := seedAssignment(t, db)

	_, err := svc.SubmitAssignment(context.Background(), a.ID, 7, "too short", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	// Whitespace does not count toward the minimum.
	_, err = svc.SubmitAssignment(context.Background(), a.ID, 7, strings.Repeat(" ", 40)+"hi", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var rows int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&rows).Error)
	assert.EqualValues(t, 0, rows)
}

func TestSubmitAssignmentUnknownAssignment(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)

	_, err := svc.SubmitAssignment(context.Background(), 999, 7, answer, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGradeSubmission(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)
	a := seedAssignment(t, db)
	sub, err := svc.SubmitAssignment(context.Background(), a.ID, 7, answer, time.Now())
	require.NoError(t, err)

	_, err = svc.GradeSubmission(context.Background(), sub.ID, 150, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = svc.GradeSubmission(context.Background(), sub.ID, -1, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	graded, err := svc.GradeSubmission(context.Background(), sub.ID, 85, "Good work")
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 85, *graded.Grade)
	assert.Equal(t, "Good work", graded.Feedback)

	// Re-grading overwrites: last write wins.
	regraded, err := svc.GradeSubmission(context.Background(), sub.ID, 90, "Even better on review")
	require.NoError(t, err)
	assert.Equal(t, 90, *regraded.Grade)

	var stored models.Submission
	require.NoError(t, db.First(&stored, sub.ID).Error)
	require.NotNil(t, stored.Grade)
	assert.Equal(t, 90, *stored.Grade)
	assert.Equal(t, "Even better on review", stored.Feedback)
	assert.Equal(t, answer, stored.Content)
}

func TestGradeSubmissionUnknown(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)

	_, err := svc.GradeSubmission(context.Background(), 999, 80, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSubmitChallengeOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)
	ch := models.DailyChallenge{
		DateKey: "2026-03-10",
		Title:   "Prime check",
		Problem: "Decide whether 221 is prime and explain your reasoning.",
		Source:  models.ChallengeAuthored,
	}
	require.NoError(t, db.Create(&ch).Error)
	now := time.Now()

	_, err := svc.SubmitChallenge(context.Background(), ch.ID, 7, "221 = 13 * 17, so it is composite.", now)
	require.NoError(t, err)

	_, err = svc.SubmitChallenge(context.Background(), ch.ID, 7, "Changed my mind about everything.", now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateSubmission))

	var rows int64
	require.NoError(t, db.Model(&models.ChallengeSubmission{}).Where("challenge_id = ?", ch.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestSubmitChallengeUnknown(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)

	_, err := svc.SubmitChallenge(context.Background(), 42, 7, "An answer long enough to pass validation.", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGradeChallengeSubmission(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubmissionService(db, 20)
	ch := models.DailyChallenge{DateKey: "2026-03-11", Title: "Sorting", Problem: "Sort a list by hand and show the steps.", Source: models.ChallengeGenerated}
	require.NoError(t, db.Create(&ch).Error)

	sub, err := svc.SubmitChallenge(context.Background(), ch.ID, 7, "Insertion sort walkthrough with five elements.", time.Now())
	require.NoError(t, err)

	graded, err := svc.GradeChallengeSubmission(context.Background(), sub.ID, 70, "Show the comparisons next time")
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 70, *graded.Grade)
}
