package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/miaoge/backend/internal/config"
	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
)

// ErrEmptyResponse is returned when the model answers without a message.
var ErrEmptyResponse = errors.New("ai: empty response from model")

// Options 控制一次补全请求的附加能力。
type Options struct {
	WebSearch  bool
	SearchTool string
}

// Service sends the persona prompt plus a context window to the chat model.
type Service struct {
	chatModel model.BaseChatModel
	persona   persona.Persona
	opts      Options
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    *zap.Logger
}

// NewService creates the chat model described by cfg and wraps it.
func NewService(ctx context.Context, p persona.Persona, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, p, Options{WebSearch: cfg.WebSearch, SearchTool: cfg.SearchTool}, logger)
}

// NewServiceWithModel compiles the prompt chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, p persona.Persona, opts Options, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SearchTool == "" {
		opts.SearchTool = "googleSearch"
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		persona:   p,
		opts:      opts,
		chain:     runnable,
		logger:    logger,
	}, nil
}

// GenerateReply issues one blocking completion request and returns the reply text.
func (s *Service) GenerateReply(ctx context.Context, history []chat.Message, userContent string) (string, error) {
	input := map[string]any{
		"system":  s.persona.SystemPrompt,
		"history": s.buildHistoryMessages(history),
		"query":   userContent,
	}

	var invokeOpts []compose.Option
	if tools := s.tools(); len(tools) > 0 {
		invokeOpts = append(invokeOpts, compose.WithChatModelOption(model.WithTools(tools)))
	}

	response, err := s.chain.Invoke(ctx, input, invokeOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", ErrEmptyResponse
	}

	s.logger.Debug("generated reply", zap.Int("history", len(history)), zap.Int("length", len(response.Content)))
	return response.Content, nil
}

func (s *Service) tools() []*schema.ToolInfo {
	if !s.opts.WebSearch {
		return nil
	}
	return []*schema.ToolInfo{{Name: s.opts.SearchTool}}
}

// buildHistoryMessages maps stored turns to role+content pairs. Images are not
// forwarded; their presence is marked in the text instead.
func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		if msg.HasImage() {
			content += s.persona.HistoryImageTag
		}

		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(content, nil))
		case chat.RoleSystem:
			history = append(history, schema.SystemMessage(content))
		}
	}

	return history
}

// ErrNotConfigured is returned by Disabled for every request.
var ErrNotConfigured = errors.New("ai: chat model not configured")

// Disabled stands in for Service when no credentials are set, so every send
// ends with the fallback reply instead of failing the request.
type Disabled struct{}

// GenerateReply always fails with ErrNotConfigured.
func (Disabled) GenerateReply(context.Context, []chat.Message, string) (string, error) {
	return "", ErrNotConfigured
}
