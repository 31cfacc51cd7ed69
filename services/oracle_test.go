package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/studypath/config"
	"github.com/openlearnhq/studypath/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func stubClient(fn roundTripFunc) *ChatClient {
	cfg := config.AppConfig{
		OracleBaseURL:    "http://oracle.test",
		OracleModel:      "test-model",
		OracleTimeoutSec: 2,
	}
	return NewChatClientWithHTTP(cfg, &http.Client{Transport: fn})
}

// chatReply wraps content in the chat-completions response shape.
func chatReply(content string) *http.Response {
	body := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	raw, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(raw))),
	}
}

func TestChatClientComplete(t *testing.T) {
	var captured chatRequest
	client := stubClient(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "http://oracle.test/v1/chat/completions", r.URL.String())
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &captured))
		return chatReply("  a helpful reply  "), nil
	})

	out, err := client.Complete(context.Background(), "be brief", "question")
	require.NoError(t, err)
	assert.Equal(t, "a helpful reply", out)
	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Nil(t, captured.ResponseFormat)
}

func TestChatClientJSONMode(t *testing.T) {
	client := stubClient(func(r *http.Request) (*http.Response, error) {
		var req chatRequest
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		return chatReply(`{"ok":true}`), nil
	})

	out, err := client.CompleteJSON(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)
}

func TestChatClientFailuresAreUnavailable(t *testing.T) {
	cases := []struct {
		name string
		fn   roundTripFunc
	}{
		{"transport error", func(*http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("connection refused")
		}},
		{"server error", func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader("upstream down"))}, nil
		}},
		{"malformed body", func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("not json"))}, nil
		}},
		{"empty choices", func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"choices":[]}`))}, nil
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := stubClient(tc.fn).Complete(context.Background(), "sys", "user")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOracleUnavailable))
		})
	}
}

func TestRecommendPicksCandidate(t *testing.T) {
	db := newTestDB(t)
	_, lessons := seedCourse(t, db, "Biology", 10, 20)

	oracle := NewAIOracle(db, stubClient(func(r *http.Request) (*http.Response, error) {
		reply := fmt.Sprintf(`{"lesson_id":%d,"course_id":%d,"reasoning":"keep going"}`, lessons[0].ID, lessons[0].CourseID)
		return chatReply(reply), nil
	}))

	rec, err := oracle.Recommend(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, rec.LessonID)
	assert.Equal(t, lessons[0].ID, *rec.LessonID)
	assert.Equal(t, "keep going", rec.Reasoning)
}

func TestRecommendRejectsLockedLesson(t *testing.T) {
	db := newTestDB(t)
	_, lessons := seedCourse(t, db, "Biology", 10, 20)

	// The model names the second lesson, which is still locked; the reply is
	// discarded in favor of the real frontier.
	oracle := NewAIOracle(db, stubClient(func(r *http.Request) (*http.Response, error) {
		reply := fmt.Sprintf(`{"lesson_id":%d,"course_id":%d,"reasoning":"skipping ahead"}`, lessons[1].ID, lessons[1].CourseID)
		return chatReply(reply), nil
	}))

	rec, err := oracle.Recommend(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, rec.LessonID)
	assert.Equal(t, lessons[0].ID, *rec.LessonID)
}

func TestRecommendAllLessonsComplete(t *testing.T) {
	db := newTestDB(t)
	_, lessons := seedCourse(t, db, "Biology", 10)
	prog := NewProgressionService(db)
	_, err := prog.CompleteLesson(context.Background(), 7, lessons[0].ID, time.Now())
	require.NoError(t, err)

	// No candidates left; the backend must not be called at all.
	oracle := NewAIOracle(db, stubClient(func(r *http.Request) (*http.Response, error) {
		t.Fatal("unexpected request to the model backend")
		return nil, nil
	}))

	rec, err := oracle.Recommend(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, rec.LessonID)
	assert.NotEmpty(t, rec.Reasoning)
}

func TestRecommendUnavailableBackend(t *testing.T) {
	db := newTestDB(t)
	seedCourse(t, db, "Biology", 10)

	oracle := NewAIOracle(db, stubClient(func(*http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("timeout")
	}))

	_, err := oracle.Recommend(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOracleUnavailable))
}

func TestHintDoesNotRequireAuthoredHint(t *testing.T) {
	oracle := NewAIOracle(nil, stubClient(func(r *http.Request) (*http.Response, error) {
		var req chatRequest
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Contains(t, req.Messages[1].Content, "do not reveal")
		return chatReply("Think about what 7 times 6 is close to."), nil
	}))

	hint, err := oracle.Hint(context.Background(), models.Question{Text: "What is 6*7?", Answer: "42"})
	require.NoError(t, err)
	assert.NotEmpty(t, hint)
}

func TestGenerateChallenge(t *testing.T) {
	oracle := NewAIOracle(nil, stubClient(func(*http.Request) (*http.Response, error) {
		return chatReply(`{"title":"Fractions","problem":"Add 1/3 and 1/4 and simplify."}`), nil
	}))

	title, problem, err := oracle.GenerateChallenge(context.Background(), "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, "Fractions", title)
	assert.Contains(t, problem, "simplify")
}

func TestDraftLesson(t *testing.T) {
	oracle := NewAIOracle(nil, stubClient(func(r *http.Request) (*http.Response, error) {
		var req chatRequest
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Contains(t, req.Messages[1].Content, "Photosynthesis")
		return chatReply("Plants convert light into chemical energy..."), nil
	}))

	draft, err := oracle.DraftLesson(context.Background(), "Biology", "Photosynthesis", "light reactions, Calvin cycle")
	require.NoError(t, err)
	assert.NotEmpty(t, draft)
}

func TestGenerateChallengeIncompleteReply(t *testing.T) {
	oracle := NewAIOracle(nil, stubClient(func(*http.Request) (*http.Response, error) {
		return chatReply(`{"title":"","problem":""}`), nil
	}))

	_, _, err := oracle.GenerateChallenge(context.Background(), "2026-03-10")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOracleUnavailable))
}
