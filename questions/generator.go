package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quizroyale/domain"
)

var categories = []string{
	"History", "Geography", "Science", "Art", "Sports",
	"Movies", "Music", "Literature", "Technology", "Nature",
}

var ErrMalformedResponse = errors.New("malformed generation response")

// Doer lets tests stub the upstream call.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Generator produces question sets from an OpenAI-compatible chat
// completion endpoint, falling back to the local bank whenever the
// upstream call fails or returns malformed content. One generator
// serves every starting room, so rng access is serialized.
type Generator struct {
	apiUrl string
	apiKey string
	model  string
	client Doer

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewGenerator(apiUrl, apiKey, model string, client Doer, rng *rand.Rand) *Generator {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{apiUrl: apiUrl, apiKey: apiKey, model: model, client: client, rng: rng}
}

// Generate returns exactly count well-formed questions, numbered 1..count.
// It only errors when even the local fallback bank cannot cover count,
// which is a configuration problem rather than a runtime condition.
func (g *Generator) Generate(ctx context.Context, count int) ([]domain.Question, error) {
	generated, err := g.fetch(ctx, count)
	if err != nil {
		log.Warn().Err(err).Msg("question generation failed, using fallback bank")
		g.rngMu.Lock()
		defer g.rngMu.Unlock()
		return Fallback(g.rng, count)
	}
	return generated, nil
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type rawQuestion struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Category     string   `json:"category"`
}

func (g *Generator) fetch(ctx context.Context, count int) ([]domain.Question, error) {
	seed := uuid.NewString()

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: buildPrompt(count, seed),
		}},
		Temperature:      1.0,
		MaxTokens:        8000,
		TopP:             0.95,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0.5,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiUrl, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMalformedResponse, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return parseContent(parsed.Choices[0].Message.Content, seed, count)
}

// parseContent extracts the JSON array from the model output, which may
// be wrapped in prose or code fences.
func parseContent(content, seed string, count int) ([]domain.Question, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array", ErrMalformedResponse)
	}

	var raw []rawQuestion
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(raw) < count {
		return nil, fmt.Errorf("%w: got %d questions, want %d", ErrMalformedResponse, len(raw), count)
	}

	result := make([]domain.Question, 0, count)
	for i, q := range raw[:count] {
		if len(q.Options) != 4 || q.CorrectIndex < 0 || q.CorrectIndex > 3 || q.Text == "" {
			return nil, fmt.Errorf("%w: bad question at index %d", ErrMalformedResponse, i)
		}
		category := q.Category
		if category == "" {
			category = categories[i%len(categories)]
		}
		result = append(result, domain.Question{
			Id:           fmt.Sprintf("q-%s-%d", seed, i),
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Category:     category,
			Number:       i + 1,
		})
	}

	return result, nil
}

func buildPrompt(count int, seed string) string {
	return fmt.Sprintf(`Generate %d UNIQUE trivia questions.

The questions must be unique and different on every call.
Request id (use it as a randomness seed): %s

Do not repeat typical questions about capitals, planets or book authors.

DIFFICULTY:
- Questions 1-5: very easy (common knowledge)
- Questions 6-15: medium (basic erudition)
- Questions 16-25: hard (good knowledge required)
- Questions 26-%d: expert

JSON format:
[
  {
    "text": "Question text?",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correctIndex": 0,
    "category": "Category"
  }
]

Categories: %s

Requirements:
- Exactly 4 options
- correctIndex between 0 and 3
- Varied categories
- Only JSON, no commentary`, count, seed, count, strings.Join(categories, ", "))
}
