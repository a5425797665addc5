package gate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint  = "https://api.openai.com/v1/chat/completions"
	httpTimeout      = 30 * time.Second
	defaultMaxTokens = 200
	systemPrompt     = "You review social-media posts before they are crossposted to a community forum. " +
		"Reject spam, self-promotion, calls to action, and hostile or discriminatory content; " +
		"admit ordinary posts even when they are short or informal. " +
		"Start your response with exactly one word: Admit, Deny, or Uncertain, followed by a brief justification."
)

// LLMGate sends post text to an OpenAI-compatible API for a verdict.
// Falls back to the provided gate on any error or an Uncertain answer.
type LLMGate struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string
	fallback  Gate
	client    *http.Client
}

// NewLLM creates an LLM gate with a fallback.
func NewLLM(apiKey, model string, maxTokens int, fallback Gate) *LLMGate {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &LLMGate{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  defaultEndpoint,
		fallback:  fallback,
		client:    &http.Client{Timeout: httpTimeout},
	}
}

func (l *LLMGate) Check(text string) Verdict {
	answer, err := l.callAPI(text)
	if err != nil {
		return l.fallback.Check(text)
	}

	verdict, reason := parseVerdict(answer)
	switch verdict {
	case "admit":
		return Verdict{Admit: true, Reason: reason}
	case "deny":
		return Verdict{Admit: false, Reason: reason}
	default:
		return l.fallback.Check(text)
	}
}

func (l *LLMGate) callAPI(text string) (string, error) {
	reqBody := chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens: l.maxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// parseVerdict splits the model answer into its leading verdict word and
// the justification that follows.
func parseVerdict(answer string) (verdict, reason string) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ""
	}

	word := answer
	if idx := strings.IndexAny(answer, " \t\n.,:;"); idx != -1 {
		word = answer[:idx]
		reason = strings.TrimSpace(strings.TrimLeft(answer[idx:], " \t\n.,:;"))
	}
	return strings.ToLower(word), reason
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
