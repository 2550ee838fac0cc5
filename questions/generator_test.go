package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDoer struct {
	status  int
	body    string
	err     error
	lastReq *http.Request
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewBufferString(s.body)),
	}, nil
}

func chatBody(t *testing.T, content string) string {
	t.Helper()
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

func questionArray(n int) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(
			`{"text":"Question %d?","options":["a","b","c","d"],"correctIndex":%d,"category":"History"}`,
			i+1, i%4))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestGenerator_ParsesUpstreamContent(t *testing.T) {
	doer := &stubDoer{
		status: http.StatusOK,
		body:   chatBody(t, "Here you go:\n```json\n"+questionArray(5)+"\n```"),
	}
	g := NewGenerator("https://llm.example/v1/chat/completions", "key", "some-model", doer, rand.New(rand.NewSource(1)))

	qs, err := g.Generate(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, qs, 5)

	for i, q := range qs {
		assert.Equal(t, i+1, q.Number)
		assert.Len(t, q.Options, 4)
		assert.Equal(t, i%4, q.CorrectIndex)
		assert.NotEmpty(t, q.Id)
	}
	assert.Equal(t, "Question 3?", qs[2].Text)

	require.NotNil(t, doer.lastReq)
	assert.Equal(t, "Bearer key", doer.lastReq.Header.Get("Authorization"))
	assert.Equal(t, "application/json", doer.lastReq.Header.Get("Content-Type"))
}

func TestGenerator_SurplusQuestionsTruncated(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: chatBody(t, questionArray(8))}
	g := NewGenerator("url", "key", "model", doer, rand.New(rand.NewSource(1)))

	qs, err := g.Generate(context.Background(), 6)
	require.NoError(t, err)
	assert.Len(t, qs, 6)
	assert.Equal(t, 6, qs[5].Number)
}

func TestGenerator_FallsBackWhenUpstreamFails(t *testing.T) {
	tests := []struct {
		name string
		doer *stubDoer
	}{
		{"transport error", &stubDoer{err: errors.New("connection refused")}},
		{"non-200 status", &stubDoer{status: http.StatusTooManyRequests, body: "slow down"}},
		{"no choices", &stubDoer{status: http.StatusOK, body: `{"choices":[]}`}},
		{"prose without an array", &stubDoer{status: http.StatusOK, body: chatBody(t, "I cannot help with that.")}},
		{"truncated array", &stubDoer{status: http.StatusOK, body: chatBody(t, questionArray(3))}},
		{"wrong option count", &stubDoer{status: http.StatusOK, body: chatBody(t,
			`[{"text":"Q?","options":["a","b"],"correctIndex":0,"category":"History"}]`)}},
		{"correct index out of range", &stubDoer{status: http.StatusOK, body: chatBody(t,
			`[{"text":"Q?","options":["a","b","c","d"],"correctIndex":4,"category":"History"}]`)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator("url", "key", "model", tc.doer, rand.New(rand.NewSource(1)))

			qs, err := g.Generate(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, qs, 10)
			for i, q := range qs {
				assert.Equal(t, i+1, q.Number)
				assert.Len(t, q.Options, 4)
				assert.GreaterOrEqual(t, q.CorrectIndex, 0)
				assert.LessOrEqual(t, q.CorrectIndex, 3)
			}
		})
	}
}

type failingDoer struct{}

func (failingDoer) Do(req *http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

// One generator is shared by every starting room, so concurrent
// fallbacks must not trip over the shared rng (run with -race).
func TestGenerator_ConcurrentFallbacks(t *testing.T) {
	g := NewGenerator("url", "key", "model", failingDoer{}, rand.New(rand.NewSource(1)))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qs, err := g.Generate(context.Background(), 10)
			assert.NoError(t, err)
			assert.Len(t, qs, 10)
		}()
	}
	wg.Wait()
}

func TestGenerator_FillsMissingCategory(t *testing.T) {
	content := `[{"text":"Q?","options":["a","b","c","d"],"correctIndex":1,"category":""}]`
	doer := &stubDoer{status: http.StatusOK, body: chatBody(t, content)}
	g := NewGenerator("url", "key", "model", doer, rand.New(rand.NewSource(1)))

	qs, err := g.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, categories[0], qs[0].Category)
}

func TestFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	qs, err := Fallback(rng, 30)
	require.NoError(t, err)
	require.Len(t, qs, 30)

	seen := map[string]bool{}
	for i, q := range qs {
		assert.Equal(t, i+1, q.Number)
		assert.Len(t, q.Options, 4)
		assert.GreaterOrEqual(t, q.CorrectIndex, 0)
		assert.LessOrEqual(t, q.CorrectIndex, 3)
		assert.False(t, seen[q.Text], "question %q repeated", q.Text)
		seen[q.Text] = true
	}
}

func TestFallback_RefusesOversizedRound(t *testing.T) {
	_, err := Fallback(rand.New(rand.NewSource(1)), len(fallbackBank)+1)
	assert.Error(t, err)
}
