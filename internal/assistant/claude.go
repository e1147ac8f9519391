package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
)

const systemPrompt = `You are the website assistant of Krugerr Brendt Real Estate, a Nairobi brokerage.
Answer briefly and politely. Help visitors find properties to buy or rent, explain off-plan projects,
and offer to arrange viewings. Never invent prices or listings; suggest contacting an agent instead.`

// Claude answers through the Anthropic Messages API.
type Claude struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

type ClaudeOption func(*claudeConfig)

type claudeConfig struct {
	clientOpts []anthropic.ClientOption
	maxTokens  int
}

// WithBaseURL points the client at another API host, for tests.
func WithBaseURL(url string) ClaudeOption {
	return func(c *claudeConfig) { c.clientOpts = append(c.clientOpts, anthropic.WithBaseURL(url)) }
}

func WithMaxTokens(n int) ClaudeOption {
	return func(c *claudeConfig) { c.maxTokens = n }
}

func NewClaude(apiKey, model string, opts ...ClaudeOption) *Claude {
	cfg := claudeConfig{maxTokens: 400}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Claude{
		client:    anthropic.NewClient(apiKey, cfg.clientOpts...),
		model:     model,
		maxTokens: cfg.maxTokens,
	}
}

func (c *Claude) Reply(ctx context.Context, history []domain.ChatMessage, text string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    systemPrompt,
		Messages:  buildMessages(history, text),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText {
			sb.WriteString(block.GetText())
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", fmt.Errorf("claude returned no text")
	}
	return reply, nil
}

// buildMessages maps the chat onto alternating user/assistant turns that
// start with the user, merging consecutive messages from one side.
func buildMessages(history []domain.ChatMessage, text string) []anthropic.Message {
	type turn struct {
		user bool
		text string
	}
	var turns []turn
	add := func(user bool, s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if len(turns) == 0 && !user {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].user == user {
			turns[n-1].text += "\n" + s
			return
		}
		turns = append(turns, turn{user: user, text: s})
	}

	for _, m := range history {
		add(m.Sender == domain.SenderHuman, m.Text)
	}
	add(true, text)

	msgs := make([]anthropic.Message, 0, len(turns))
	for _, t := range turns {
		if t.user {
			msgs = append(msgs, anthropic.NewUserTextMessage(t.text))
		} else {
			msgs = append(msgs, anthropic.NewAssistantTextMessage(t.text))
		}
	}
	return msgs
}
