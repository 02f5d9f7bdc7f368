package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// All surviving articles go out in one request. On a rate-limit
	// response the call is retried after a fixed cooldown, up to
	// maxAttempts total.
	maxAttempts     = 3
	defaultCooldown = 60 * time.Second
)

// Verdict statuses.
const (
	StatusKeep = "KEEP"
	StatusPass = "PASS"
)

// Sentiment labels.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// ErrRateLimited is returned when the model API keeps rate-limiting after
// all retry attempts are exhausted.
var ErrRateLimited = errors.New("rate limited")

// ErrMalformedOutput is returned when the model response cannot be parsed.
// There is no retry for this; a retry would spend another call on the same
// prompt that just failed.
var ErrMalformedOutput = errors.New("malformed model output")

// Item is one article submitted for classification. ID is the caller's
// correlation key and comes back unchanged on the matching Verdict.
type Item struct {
	ID      int
	Title   string
	Content string
}

// Verdict is the per-article classification result.
type Verdict struct {
	ID        int    `json:"id"`
	Status    string `json:"status"`
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`
}

// Classifier batches articles into a single Gemini call and returns one
// verdict per article.
type Classifier struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	cooldown   time.Duration
	sleep      func(time.Duration)
	legacy     bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModel sets the Gemini model to use.
func WithModel(model string) Option {
	return func(c *Classifier) {
		c.model = model
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Classifier) {
		c.baseURL = url
	}
}

// WithCooldown sets the wait between rate-limited attempts (for testing).
func WithCooldown(d time.Duration) Option {
	return func(c *Classifier) {
		c.cooldown = d
	}
}

// WithSleep replaces the wait function (for testing).
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Classifier) {
		c.sleep = fn
	}
}

// WithLegacyParser switches to the free-text protocol: answers separated
// by "###", correlated by position instead of id. Kept for compatibility
// with runs recorded under the old prompt; the structured protocol is the
// default and the baseline.
func WithLegacyParser() Option {
	return func(c *Classifier) {
		c.legacy = true
	}
}

// NewClassifier creates a Gemini-backed batch classifier.
func NewClassifier(apiKey string, opts ...Option) *Classifier {
	c := &Classifier{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		cooldown:   defaultCooldown,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify sends all items in one request and returns their verdicts.
// An empty input returns an empty verdict list without any API call.
func (c *Classifier) Classify(ctx context.Context, items []Item) ([]Verdict, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var prompt string
	if c.legacy {
		prompt = buildLegacyPrompt(items)
	} else {
		prompt = buildPrompt(items)
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if c.legacy {
		return parseLegacyResponse(text, items), nil
	}
	return parseVerdicts(text)
}

// generate makes the model call, retrying on rate limiting.
func (c *Classifier) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}
	if !c.legacy {
		reqBody.GenerationConfig = &geminiGenerationConfig{
			ResponseMIMEType: "application/json",
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	for attempt := 1; ; attempt++ {
		text, err := c.doRequest(ctx, url, bodyBytes)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt >= maxAttempts {
			return "", err
		}
		c.sleep(c.cooldown)
	}
}

func (c *Classifier) doRequest(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty candidate", ErrMalformedOutput)
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

func buildPrompt(items []Item) string {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "[%d] 제목: %s\n내용: %s\n\n", item.ID, item.Title, item.Content)
	}

	return fmt.Sprintf(`당신은 금융 분석 전문가입니다. 다음 %d건의 뉴스를 각각 분석하세요.

판정 기준:
- 목표주가, 투자의견, 증권사 리포트 등 기계적인 시황·평가 기사는 status를 "PASS"로 합니다.
- 사건·사고, 소송, 경영진 변동, 제휴, 신규 서비스 출시 등 회사 자체에 대한 뉴스는 status를 "KEEP"으로 합니다.
- status가 "KEEP"이면 sentiment를 "POSITIVE", "NEGATIVE", "NEUTRAL" 중 하나로 정하고 summary에 한 줄 요약을 작성하세요.

다음 JSON 배열 형식으로만 답하세요. id는 입력의 번호를 그대로 사용합니다.
[{"id": 0, "status": "KEEP", "sentiment": "POSITIVE", "summary": "한 줄 요약"}]

%s`, len(items), sb.String())
}

// parseVerdicts decodes the structured response. Anything unparseable
// aborts the whole classification; individual verdicts with out-of-band
// status values are normalized to PASS by the caller's lookup.
func parseVerdicts(text string) ([]Verdict, error) {
	text = stripMarkdownCodeBlock(text)

	var verdicts []Verdict
	if err := json.Unmarshal([]byte(text), &verdicts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	for i := range verdicts {
		verdicts[i].Status = strings.ToUpper(strings.TrimSpace(verdicts[i].Status))
		verdicts[i].Sentiment = strings.ToUpper(strings.TrimSpace(verdicts[i].Sentiment))
	}
	return verdicts, nil
}

var codeBlockRegex = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.+?)\\s*```\\s*$")

func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if matches := codeBlockRegex.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return s
}

// Gemini API types

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}
