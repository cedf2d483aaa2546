package chat

import (
	"context"
	"strings"

	"foodseer/internal/backend"
	"foodseer/internal/llm"
)

// Reply is a completion-service answer. MatchedFoodID is only present when
// the service resolved the recommendation itself.
type Reply struct {
	Message       string
	MatchedFoodID *int64
}

// Completer is the opaque text-generation step of the conversation.
type Completer interface {
	Complete(ctx context.Context, req backend.ChatRequest) (Reply, error)
}

// BackendCompleter routes completions through the FoodSeer backend's chat
// endpoint, which can return a structured matched food id.
type BackendCompleter struct {
	Client *backend.Client
}

func (c BackendCompleter) Complete(ctx context.Context, req backend.ChatRequest) (Reply, error) {
	resp, err := c.Client.SendChat(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Message: resp.Message, MatchedFoodID: resp.MatchedFoodID}, nil
}

// LLMCompleter talks to a model endpoint directly (local Ollama via an
// OpenAI-compatible API, or a hosted provider). It never returns a matched
// id; the substring matcher covers that path.
type LLMCompleter struct {
	Client llm.Client
}

func (c LLMCompleter) Complete(ctx context.Context, req backend.ChatRequest) (Reply, error) {
	msgs := make([]llm.Message, 0, len(req.History)+1)
	for _, h := range req.History {
		msgs = append(msgs, llm.Message{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: req.Message})

	resp, err := c.Client.Generate(ctx, msgs)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Message: strings.TrimSpace(resp.Content)}, nil
}
