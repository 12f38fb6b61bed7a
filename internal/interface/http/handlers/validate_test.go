package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

type sampleRequest struct {
	TopicID string   `json:"topic_id" validate:"required,max=8"`
	IDs     []string `json:"question_ids" validate:"required,max=3,dive,required"`
	Mood    string   `json:"mood" validate:"omitempty,oneof=happy sad"`
	Food    int      `json:"food" validate:"gte=0"`
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrValidationFailed), "got %v", err)

	de, ok := shared.AsDomainError(err)
	require.True(t, ok)
	out, ok := de.Details["fields"].(map[string]string)
	require.True(t, ok)
	return out
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, Validate(&sampleRequest{TopicID: "t1", IDs: []string{"q1"}}))
	})

	t.Run("reports json names", func(t *testing.T) {
		got := fields(t, Validate(&sampleRequest{Mood: "angry", Food: -1}))
		assert.Equal(t, map[string]string{
			"topic_id":     "is required",
			"question_ids": "is required",
			"mood":         "must be one of: happy sad",
			"food":         "must be greater than or equal to 0",
		}, got)
	})

	t.Run("indexes nested elements", func(t *testing.T) {
		got := fields(t, Validate(&sampleRequest{TopicID: "t1", IDs: []string{"q1", ""}}))
		assert.Equal(t, "is required", got["question_ids[1]"])
	})

	t.Run("length units", func(t *testing.T) {
		got := fields(t, Validate(&sampleRequest{TopicID: "much-too-long", IDs: []string{"a", "b", "c", "d"}}))
		assert.Equal(t, "must be at most 8 characters long", got["topic_id"])
		assert.True(t, strings.HasPrefix(got["question_ids"], "must be at most 3"))
	})
}

func TestDecodeAndValidate(t *testing.T) {
	decode := func(body string) (sampleRequest, error) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dst sampleRequest
		err := DecodeAndValidate(r, &dst)
		return dst, err
	}

	t.Run("ok", func(t *testing.T) {
		got, err := decode(`{"topic_id":"t1","question_ids":["q1","q2"]}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"q1", "q2"}, got.IDs)
	})

	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", ``, ErrMalformedBody},
		{"not json", `topic_id=t1`, ErrMalformedBody},
		{"unknown field", `{"topic_id":"t1","question_ids":["q1"],"xp":100}`, ErrMalformedBody},
		{"wrong type", `{"topic_id":7,"question_ids":["q1"]}`, ErrMalformedBody},
		{"trailing object", `{"topic_id":"t1","question_ids":["q1"]}{}`, ErrMalformedBody},
		{"fails tags", `{"topic_id":"t1"}`, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(tt.body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, shared.IsInvalidInput(err))
		})
	}
}

func TestDecodeAndValidate_BodyLimit(t *testing.T) {
	var got error
	h := RequestSizeLimitMiddleware(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dst sampleRequest
		got = DecodeAndValidate(r, &dst)
	}))

	body := `{"topic_id":"t1","question_ids":["q1","q2","q3"]}`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	require.Error(t, got)
	assert.True(t, errors.Is(got, ErrMalformedBody))
	de, _ := shared.AsDomainError(got)
	assert.Contains(t, de.Message, "exceeds 16 bytes")
}
