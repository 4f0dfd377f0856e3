package bot

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/onnwee/chat-relay/config"
)

// ChatClient generates replies with the OpenAI chat completions API, framed
// as a beginner's English teacher via a fixed few-shot primer.
type ChatClient struct {
	client openai.Client
	model  string
}

func NewChatClient(cfg *config.Config) *ChatClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return &ChatClient{client: openai.NewClient(opts...), model: cfg.OpenAIModel}
}

func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: primerMessages(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// primerMessages frames the conversation: the model plays a kindergarten
// English starter teacher and answers with the English word, explanation, and
// example sentences, English marked with backticks.
func primerMessages(prompt string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("Suppose you are a kindergarten English starter teacher, I am going to ask you some simple words and ask you to say his English and give as much English explanation and example sentences as possible, and mark the English portion with ``"),
		openai.UserMessage("路灯"),
		openai.AssistantMessage("路灯的英文是`street light`。它是指在街道上安装的照明设备，通常用来照亮道路，提供行人和车辆安全的照明。这是它的英文例句：1. `Look, the street lights are turning on as it gets dark outside.` 2. `It is important to have street lights in the city for safety reasons.`"),
		openai.UserMessage(prompt),
	}
}
