// Package llm provides chat model adapters over langchaingo.
// Clean Architecture: Adapter implementing ports.LLMService.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

var errNoChoices = errors.New("model returned no choices")

// ChatModel implements ports.LLMService on top of any langchaingo model.
type ChatModel struct {
	name  string
	model llms.Model
	opts  []llms.CallOption
	log   logging.Logger
}

// NewChatModel wraps model. name is used in logs only.
func NewChatModel(name string, model llms.Model, log logging.Logger, opts ...llms.CallOption) *ChatModel {
	return &ChatModel{name: name, model: model, opts: opts, log: logging.OrNop(log)}
}

// Name returns the configured provider name.
func (c *ChatModel) Name() string { return c.name }

// Complete returns the full completion for messages.
func (c *ChatModel) Complete(ctx context.Context, messages []entities.Turn) (string, error) {
	resp, err := c.model.GenerateContent(ctx, toMessageContent(messages), c.opts...)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("calling %s: %w", c.name, errNoChoices)
	}
	return resp.Choices[0].Content, nil
}

// CompleteStream streams the completion token by token. Vendors that answer
// in one piece produce a single content token. The last token is either Done
// or carries the error.
func (c *ChatModel) CompleteStream(ctx context.Context, messages []entities.Turn) (<-chan ports.StreamToken, error) {
	msgs := toMessageContent(messages)
	ch := make(chan ports.StreamToken, 100)

	send := func(tok ports.StreamToken) bool {
		select {
		case ch <- tok:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)

		streamed := false
		streamingFunc := func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			if !send(ports.StreamToken{Content: string(chunk)}) {
				return ctx.Err()
			}
			return nil
		}

		opts := append(append([]llms.CallOption(nil), c.opts...), llms.WithStreamingFunc(streamingFunc))
		resp, err := c.model.GenerateContent(ctx, msgs, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("%s stream failed: %v", c.name, err)
			send(ports.StreamToken{Done: true, Error: fmt.Errorf("calling %s: %w", c.name, err)})
			return
		}

		if !streamed && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
			if !send(ports.StreamToken{Content: resp.Choices[0].Content}) {
				return
			}
		}
		send(ports.StreamToken{Done: true})
	}()

	return ch, nil
}

// toMessageContent converts turns. Consecutive system turns are sent as one
// message, since some vendors accept a single system prompt.
func toMessageContent(turns []entities.Turn) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(turns))
	for i := 0; i < len(turns); i++ {
		t := turns[i]
		if t.Role == entities.RoleSystem {
			text := t.Content
			for i+1 < len(turns) && turns[i+1].Role == entities.RoleSystem {
				i++
				text += "\n\n" + turns[i].Content
			}
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, text))
			continue
		}
		out = append(out, llms.TextParts(messageType(t.Role), t.Content))
	}
	return out
}

func messageType(r entities.Role) llms.ChatMessageType {
	switch r {
	case entities.RoleSystem:
		return llms.ChatMessageTypeSystem
	case entities.RoleAssistant:
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}
