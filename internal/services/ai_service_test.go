package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Stride/internal/models"
)

func sampleSummary(t *testing.T) EvaluationSummary {
	t.Helper()
	rs := models.NewResponseSet()
	rs.Values[models.ResponseKey{Evaluator: models.EvaluatorSelf, Category: 0, Item: 0}] = 1
	rs.Values[models.ResponseKey{Evaluator: models.EvaluatorStaff, Category: 0, Item: 0}] = 4
	rs.Values[models.ResponseKey{Evaluator: models.EvaluatorStaff, Category: 0, Item: 1}] = 2
	rs.Values[models.ResponseKey{Evaluator: models.EvaluatorFamily, Category: 0, Item: 1}] = 3
	target := models.SupportTarget{ID: "T-001", Name: "山田 太郎", Birthdate: "1990-05-20", Gender: models.GenderMale}
	summary, err := BuildSummary(target, "2024-04-01", rs, DefaultChecklist())
	require.NoError(t, err)
	return summary
}

// chatServer answers every completion request with content and records
// the last request body.
func chatServer(t *testing.T, status int, content string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if last != nil {
			_ = json.Unmarshal(body, last)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAI(base string) *AIService {
	return NewAIService(AIConfig{BaseURL: base, APIKey: "test-key", Timeout: 5 * time.Second}, nil)
}

func TestBuildSummary(t *testing.T) {
	s := sampleSummary(t)
	assert.Equal(t, 33, s.Target.Age)
	assert.Len(t, s.Items, 34)
	assert.Equal(t, map[models.Evaluator]int{models.EvaluatorSelf: 5, models.EvaluatorStaff: 2}, s.Items[0].Scores)
	assert.Equal(t, 3.0, s.CategoryScores[models.EvaluatorStaff]["I 日常生活"])
	assert.Equal(t, 6, s.CompletionRates[models.EvaluatorStaff])
	assert.Equal(t, 3, s.CompletionRates[models.EvaluatorFamily])
}

func TestAgeOn(t *testing.T) {
	assert.Equal(t, 33, ageOn("1990-05-20", "2024-05-19"))
	assert.Equal(t, 34, ageOn("1990-05-20", "2024-05-20"))
	assert.Equal(t, 0, ageOn("", "2024-05-20"))
	assert.Equal(t, 0, ageOn("2030-01-01", "2024-05-20"))
}

func TestObservationSendsSummary(t *testing.T) {
	var req map[string]any
	srv := chatServer(t, http.StatusOK, "  全体として安定しています。 ", &req)
	ai := newTestAI(srv.URL)

	got := ai.Observation(context.Background(), sampleSummary(t))
	assert.False(t, got.Fallback)
	assert.Equal(t, "全体として安定しています。", got.Text)
	assert.Equal(t, "gpt-4o-mini", req["model"])
	_, jsonMode := req["response_format"]
	assert.False(t, jsonMode)

	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, `"evaluationDate":"2024-04-01"`)
	assert.Contains(t, user, "山田 太郎")
}

func TestConsiderationsParsesJSON(t *testing.T) {
	var req map[string]any
	srv := chatServer(t, http.StatusOK, `{"considerations":["a","b","c"]}`, &req)
	got := newTestAI(srv.URL).Considerations(context.Background(), sampleSummary(t))
	assert.False(t, got.Fallback)
	assert.Equal(t, []string{"a", "b", "c"}, got.Items)
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
}

func TestRecommendGoalsParsesJSON(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"goals":["通所を安定させる"],"actionPlan":"面談","successCriteria":"90%","supportNeeded":"記録表"}`, nil)
	got := newTestAI(srv.URL).RecommendGoals(context.Background(), sampleSummary(t))
	assert.False(t, got.Fallback)
	assert.Equal(t, []string{"通所を安定させる"}, got.Goals)
	assert.Equal(t, "面談", got.ActionPlan)
}

func TestAIFallbacks(t *testing.T) {
	ctx := context.Background()
	summary := sampleSummary(t)

	t.Run("no key", func(t *testing.T) {
		ai := NewAIService(AIConfig{}, nil)
		assert.True(t, ai.Observation(ctx, summary).Fallback)
		assert.Equal(t, fallbackConsiderations, ai.Considerations(ctx, summary).Items)
	})

	t.Run("upstream error", func(t *testing.T) {
		srv := chatServer(t, http.StatusInternalServerError, "", nil)
		ai := newTestAI(srv.URL)
		obs := ai.Observation(ctx, summary)
		assert.True(t, obs.Fallback)
		assert.Equal(t, fallbackObservation, obs.Text)
		goals := ai.RecommendGoals(ctx, summary)
		assert.True(t, goals.Fallback)
		assert.NotEmpty(t, goals.Goals)
	})

	t.Run("malformed json", func(t *testing.T) {
		srv := chatServer(t, http.StatusOK, "not json", nil)
		got := newTestAI(srv.URL).Considerations(ctx, summary)
		assert.True(t, got.Fallback)
		assert.Len(t, got.Items, 3)
	})

	t.Run("empty goals", func(t *testing.T) {
		srv := chatServer(t, http.StatusOK, `{"goals":[]}`, nil)
		assert.True(t, newTestAI(srv.URL).RecommendGoals(ctx, summary).Fallback)
	})
}

func TestAnalyzeDifferencesFallbackComputesGaps(t *testing.T) {
	srv := chatServer(t, http.StatusBadGateway, "", nil)
	got := newTestAI(srv.URL).AnalyzeDifferences(context.Background(), sampleSummary(t))
	require.True(t, got.Fallback)
	assert.Equal(t, fallbackDifferences, got.Summary)
	// Item 0: self 5 vs staff 2. Item 1: staff 4 vs family 3 is below the threshold.
	require.Len(t, got.Gaps, 1)
	gap := got.Gaps[0]
	assert.Equal(t, "起床", gap.Item)
	assert.Equal(t, 5, gap.Self)
	assert.Equal(t, 2, gap.Staff)
	assert.Equal(t, 0, gap.Family)
	assert.True(t, strings.Contains(gap.Note, "3 点"))
}

func TestAnalyzeDifferencesFromModel(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"summary":"本人評価が高い傾向","gaps":[{"category":"I 日常生活","item":"起床","self":5,"staff":2}]}`, nil)
	got := newTestAI(srv.URL).AnalyzeDifferences(context.Background(), sampleSummary(t))
	assert.False(t, got.Fallback)
	assert.Equal(t, "本人評価が高い傾向", got.Summary)
	require.Len(t, got.Gaps, 1)
}

func TestNormalizeOpenAIEndpoint(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "https://api.openai.com/v1/chat/completions"},
		{"https://example.com/", "https://example.com/v1/chat/completions"},
		{"https://example.com/v1", "https://example.com/v1/chat/completions"},
		{"https://example.com/v1/chat/completions", "https://example.com/v1/chat/completions"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizeOpenAIEndpoint(c.in), c.in)
	}
}
