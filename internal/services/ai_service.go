package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/models"
)

type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retries int
}

// AIService calls an OpenAI-compatible chat completions endpoint. Every
// operation degrades to canned content when the call fails, so callers
// always receive a usable result and check Fallback to tell them apart.
type AIService struct {
	cfg    AIConfig
	client *resty.Client
	logger *zap.Logger
}

func NewAIService(cfg AIConfig, logger *zap.Logger) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &AIService{cfg: cfg, client: client, logger: logger}
}

var errAIDisabled = errors.New("external AI disabled or missing key")

type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chat sends one system+user exchange and returns the first choice.
func (s *AIService) chat(ctx context.Context, system string, summary EvaluationSummary, jsonMode bool) (string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", errAIDisabled
	}
	body, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	payload := map[string]any{
		"model":       s.cfg.Model,
		"temperature": 0.4,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": string(body)},
		},
	}
	if jsonMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var cc chatCompletion
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.cfg.APIKey).
		SetBody(payload).
		SetResult(&cc).
		Post(normalizeOpenAIEndpoint(s.cfg.BaseURL))
	if err != nil {
		return "", NewBadGatewayError("ai request failed", err)
	}
	if resp.StatusCode() >= 300 {
		return "", NewBadGatewayError(fmt.Sprintf("ai status %d", resp.StatusCode()), errors.New(strings.TrimSpace(resp.String())))
	}
	if len(cc.Choices) == 0 {
		return "", NewBadGatewayError("no choices", nil)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return "", NewBadGatewayError("empty completion", nil)
	}
	return content, nil
}

func (s *AIService) chatJSON(ctx context.Context, system string, summary EvaluationSummary, out any) error {
	content, err := s.chat(ctx, system, summary, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return NewBadGatewayError("invalid JSON from model", err)
	}
	return nil
}

func (s *AIService) fallback(op string, err error) {
	s.logger.Warn("ai call failed, using fallback content", zap.String("operation", op), zap.Error(err))
}

type ObservationResult struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// Observation produces a narrative summary of the evaluation.
func (s *AIService) Observation(ctx context.Context, summary EvaluationSummary) ObservationResult {
	text, err := s.chat(ctx, observationPrompt, summary, false)
	if err != nil {
		s.fallback("observation", err)
		return ObservationResult{Text: fallbackObservation, Fallback: true}
	}
	return ObservationResult{Text: text}
}

type ConsiderationsResult struct {
	Items    []string `json:"items"`
	Fallback bool     `json:"fallback"`
}

func (s *AIService) Considerations(ctx context.Context, summary EvaluationSummary) ConsiderationsResult {
	var out struct {
		Considerations []string `json:"considerations"`
	}
	err := s.chatJSON(ctx, considerationsPrompt, summary, &out)
	if err == nil && len(out.Considerations) == 0 {
		err = NewBadGatewayError("no considerations in response", nil)
	}
	if err != nil {
		s.fallback("considerations", err)
		return ConsiderationsResult{Items: append([]string(nil), fallbackConsiderations...), Fallback: true}
	}
	return ConsiderationsResult{Items: out.Considerations}
}

type GoalRecommendation struct {
	Goals           []string `json:"goals"`
	ActionPlan      string   `json:"actionPlan"`
	SuccessCriteria string   `json:"successCriteria"`
	SupportNeeded   string   `json:"supportNeeded"`
	Fallback        bool     `json:"fallback"`
}

func (s *AIService) RecommendGoals(ctx context.Context, summary EvaluationSummary) GoalRecommendation {
	var out GoalRecommendation
	err := s.chatJSON(ctx, goalsPrompt, summary, &out)
	if err == nil && len(out.Goals) == 0 {
		err = NewBadGatewayError("no goals in response", nil)
	}
	if err != nil {
		s.fallback("goals", err)
		return fallbackGoals()
	}
	out.Fallback = false
	return out
}

type DifferenceGap struct {
	Category string `json:"category"`
	Item     string `json:"item"`
	Self     int    `json:"self,omitempty"`
	Staff    int    `json:"staff,omitempty"`
	Family   int    `json:"family,omitempty"`
	Note     string `json:"note,omitempty"`
}

type DifferenceAnalysis struct {
	Summary  string          `json:"summary"`
	Gaps     []DifferenceGap `json:"gaps"`
	Fallback bool            `json:"fallback"`
}

// AnalyzeDifferences compares how the evaluators rated the same items.
func (s *AIService) AnalyzeDifferences(ctx context.Context, summary EvaluationSummary) DifferenceAnalysis {
	var out DifferenceAnalysis
	err := s.chatJSON(ctx, differencesPrompt, summary, &out)
	if err == nil && strings.TrimSpace(out.Summary) == "" {
		err = NewBadGatewayError("no summary in response", nil)
	}
	if err != nil {
		s.fallback("differences", err)
		return DifferenceAnalysis{Summary: fallbackDifferences, Gaps: scoreGaps(summary, 2), Fallback: true}
	}
	out.Fallback = false
	return out
}

// scoreGaps lists items where evaluators differ by at least minGap points.
func scoreGaps(summary EvaluationSummary, minGap int) []DifferenceGap {
	var gaps []DifferenceGap
	for _, it := range summary.Items {
		if len(it.Scores) < 2 {
			continue
		}
		lo, hi := 99, 0
		var rated []string
		for ev, v := range it.Scores {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
			rated = append(rated, evaluatorLabel(ev))
		}
		if hi-lo < minGap {
			continue
		}
		sort.Strings(rated)
		gaps = append(gaps, DifferenceGap{
			Category: it.Category,
			Item:     it.Label,
			Self:     it.Scores[models.EvaluatorSelf],
			Staff:    it.Scores[models.EvaluatorStaff],
			Family:   it.Scores[models.EvaluatorFamily],
			Note:     fmt.Sprintf("%s の評価に %d 点の差があります", strings.Join(rated, "・"), hi-lo),
		})
	}
	return gaps
}

func normalizeOpenAIEndpoint(base string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(base), "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com"
	}
	switch {
	case strings.HasSuffix(endpoint, "/chat/completions"):
		return endpoint
	case strings.HasSuffix(endpoint, "/v1"):
		return endpoint + "/chat/completions"
	default:
		return endpoint + "/v1/chat/completions"
	}
}

const (
	observationPrompt = "あなたは就労移行支援の専門職です。入力JSONは利用者のチェックリスト評価（正規化済み、5が最も良い）です。" +
		"全体的な所見を300字程度の日本語の文章で述べてください。"
	considerationsPrompt = "あなたは就労移行支援の専門職です。入力JSONの評価結果から、支援上の留意点を3〜5件挙げてください。" +
		`JSONのみを返してください: {"considerations": ["..."]}`
	goalsPrompt = "あなたは就労移行支援の専門職です。入力JSONの評価結果から次期の支援目標を提案してください。" +
		`JSONのみを返してください: {"goals": ["..."], "actionPlan": "...", "successCriteria": "...", "supportNeeded": "..."}`
	differencesPrompt = "あなたは就労移行支援の専門職です。入力JSONには本人・職員・家族の評価が含まれます。評価者間の差異を分析してください。" +
		`JSONのみを返してください: {"summary": "...", "gaps": [{"category": "...", "item": "...", "self": 0, "staff": 0, "family": 0, "note": "..."}]}`
)

const (
	fallbackObservation = "AIによる所見を生成できませんでした。評価結果のカテゴリ別平均と各項目の回答をもとに、担当職員が所見を記入してください。"
	fallbackDifferences = "AIによる差異分析を生成できませんでした。評価者間で2点以上の差がある項目を一覧に示します。"
)

var fallbackConsiderations = []string{
	"評価の低い項目について、具体的な場面を本人と振り返る機会を設けてください。",
	"本人評価と職員評価に差がある項目は、面談で認識をすり合わせてください。",
	"生活リズムや体調管理の状況を継続的に確認してください。",
}

func fallbackGoals() GoalRecommendation {
	return GoalRecommendation{
		Goals:           []string{"生活リズムを整え、安定して通所する", "困ったときに自分から相談できるようになる"},
		ActionPlan:      "週1回の面談で生活記録を確認し、達成できた点を振り返る。",
		SuccessCriteria: "1か月間の通所率90%以上、相談の自発的な申し出が週1回以上。",
		SupportNeeded:   "定期面談、生活記録表の提供、必要に応じた家族との連携。",
		Fallback:        true,
	}
}
