package textgen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestGenerateSendsSystemAndUserMessages(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "  A week of small noticing.  "}},
	}}
	client := NewClientWithModel(model)

	text, err := client.Generate(context.Background(), Request{System: "sys", User: "usr", MaxTokens: 400})
	require.NoError(t, err)
	assert.Equal(t, "A week of small noticing.", text)

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.TextContent{Text: "sys"}, model.messages[0].Parts[0])
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.TextContent{Text: "usr"}, model.messages[1].Parts[0])
	assert.Equal(t, 400, model.opts.MaxTokens)
}

func TestGenerateEmptyResponse(t *testing.T) {
	for _, resp := range []*llms.ContentResponse{
		nil,
		{},
		{Choices: []*llms.ContentChoice{{Content: "   "}}},
	} {
		client := NewClientWithModel(&fakeModel{resp: resp})
		_, err := client.Generate(context.Background(), Request{System: "s", User: "u"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestGenerateWrapsModelError(t *testing.T) {
	boom := errors.New("connection refused")
	client := NewClientWithModel(&fakeModel{err: boom})

	_, err := client.Generate(context.Background(), Request{System: "s", User: "u"})
	assert.ErrorIs(t, err, boom)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{Model: "gpt-4.1-mini"})
	assert.Error(t, err)

	client, err := NewClient(Config{APIKey: "sk-test", Model: "gpt-4.1-mini"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
