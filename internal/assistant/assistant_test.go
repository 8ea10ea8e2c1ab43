package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/folio/internal/config"
	"github.com/fyrsmithlabs/folio/internal/profile"
)

// fakeModel returns canned replies and records what it was sent.
type fakeModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	delay    time.Duration
	messages [][]llms.MessageContent
	options  []llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.mu.Lock()
	f.messages = append(f.messages, messages)
	f.options = append(f.options, opts)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeModel) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	msgs := f.messages[len(f.messages)-1]
	part, ok := msgs[len(msgs)-1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func newTestClient(t *testing.T, model llms.Model) *Client {
	return NewWithModel(model, config.AssistantConfig{Timeout: time.Second, RatePerMin: 6000}, zaptest.NewLogger(t))
}

func TestCheckSpam(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		spam  bool
	}{
		{"plain json", `{"isSpam": true, "reason": "crypto pitch"}`, true},
		{"fenced json", "```json\n{\"isSpam\": false}\n```", false},
		{"empty reply", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{reply: tt.reply}
			c := newTestClient(t, model)

			v, err := c.CheckSpam(context.Background(), "Buy cheap followers now")
			require.NoError(t, err)
			assert.Equal(t, tt.spam, v.IsSpam)
			assert.Contains(t, model.lastText(t), "Buy cheap followers now")
			assert.True(t, model.options[0].JSONMode)
		})
	}
}

func TestCheckSpam_Errors(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		c := newTestClient(t, &fakeModel{err: errors.New("boom")})
		_, err := c.CheckSpam(context.Background(), "hi")
		require.Error(t, err)
	})
	t.Run("unparseable", func(t *testing.T) {
		c := newTestClient(t, &fakeModel{reply: "definitely spam"})
		_, err := c.CheckSpam(context.Background(), "hi")
		require.Error(t, err)
	})
	t.Run("timeout", func(t *testing.T) {
		c := NewWithModel(&fakeModel{delay: time.Second}, config.AssistantConfig{Timeout: 20 * time.Millisecond}, nil)
		_, err := c.CheckSpam(context.Background(), "hi")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("not configured", func(t *testing.T) {
		c := newTestClient(t, nil)
		assert.False(t, c.Available())
		_, err := c.CheckSpam(context.Background(), "hi")
		require.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestAnswerProfileQuestion(t *testing.T) {
	p := profile.Default()

	t.Run("answer", func(t *testing.T) {
		model := &fakeModel{reply: "  The profile shows Go and TypeScript.  "}
		c := newTestClient(t, model)

		got := c.AnswerProfileQuestion(context.Background(), "What languages?", p)
		assert.Equal(t, "The profile shows Go and TypeScript.", got)

		model.mu.Lock()
		msgs := model.messages[0]
		model.mu.Unlock()
		require.Len(t, msgs, 2)
		assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
		system := msgs[0].Parts[0].(llms.TextContent).Text
		assert.Contains(t, system, "Profile Q&A Assistant for "+p.Name)
		assert.Contains(t, system, "Please message "+p.Name+" directly.")

		user := model.lastText(t)
		assert.Contains(t, user, "Name: "+p.Name)
		assert.Contains(t, user, "Question: What languages?")
		for _, e := range p.Experience {
			assert.Contains(t, user, e.Company)
		}
	})

	t.Run("failure returns apology", func(t *testing.T) {
		c := newTestClient(t, &fakeModel{err: errors.New("quota")})
		assert.Equal(t, AnswerUnavailable, c.AnswerProfileQuestion(context.Background(), "hi?", p))
	})

	t.Run("empty answer", func(t *testing.T) {
		c := newTestClient(t, &fakeModel{reply: "   "})
		assert.Equal(t, AnswerEmpty, c.AnswerProfileQuestion(context.Background(), "hi?", p))
	})

	t.Run("unconfigured", func(t *testing.T) {
		c := newTestClient(t, nil)
		assert.Equal(t, AnswerUnavailable, c.AnswerProfileQuestion(context.Background(), "hi?", p))
	})
}

func TestEvaluateOccupation(t *testing.T) {
	model := &fakeModel{reply: `{"code": "2134", "title": "Programmers and software development professionals", "confidence": 140, "reasoning": ["writes software"]}`}
	c := newTestClient(t, model)

	res, err := c.EvaluateOccupation(context.Background(), "Software Engineer", "Builds backend services")
	require.NoError(t, err)
	assert.Equal(t, "2134", res.Code)
	assert.Equal(t, 100.0, res.Confidence, "confidence is clamped")
	assert.Equal(t, []string{"writes software"}, res.Reasoning)
	assert.Contains(t, model.lastText(t), "Job Title: Software Engineer")

	_, err = newTestClient(t, &fakeModel{reply: `{"title": "x"}`}).EvaluateOccupation(context.Background(), "a", "b")
	require.Error(t, err)
}

func TestNew_WithoutKeyIsUnavailable(t *testing.T) {
	c, err := New(config.AssistantConfig{Model: "m"}, nil)
	require.NoError(t, err)
	assert.False(t, c.Available())

	c, err = New(config.AssistantConfig{Model: "m", APIKey: "k", BaseURL: "http://127.0.0.1:1/v1"}, nil)
	require.NoError(t, err)
	assert.True(t, c.Available())
}
