package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAICompleter drives any OpenAI-compatible chat endpoint through langchaingo.
type OpenAICompleter struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// NewOpenAIModel builds a langchaingo OpenAI client. An empty baseURL uses the
// public API; pointing it at an Ollama or vLLM server works as well.
func NewOpenAIModel(apiKey, model, embeddingModel, baseURL string) (*openai.LLM, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if embeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(embeddingModel))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func NewOpenAICompleter(model llms.Model, temperature float32, maxTokens int) *OpenAICompleter {
	return &OpenAICompleter{model: model, temperature: float64(temperature), maxTokens: maxTokens}
}

func (o *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(o.temperature),
		llms.WithMaxTokens(o.maxTokens),
	}
	if len(req.Tools) > 0 {
		opts = append(opts, llms.WithTools(langchainTools(req.Tools)))
		if req.DisableTools {
			opts = append(opts, llms.WithToolChoice("none"))
		} else {
			opts = append(opts, llms.WithToolChoice("auto"))
		}
	}
	resp, err := o.model.GenerateContent(ctx, langchainMessages(req), opts...)
	if err != nil {
		return nil, fmt.Errorf("openai api call failed: %w", err)
	}
	return langchainCompletion(resp)
}

func langchainTools(defs []ToolDefinition) []llms.Tool {
	tools := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.JSONSchema(),
			},
		})
	}
	return tools
}

func langchainMessages(req CompletionRequest) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Text != "" {
				mc.Parts = append(mc.Parts, llms.TextPart(m.Text))
			}
			for _, c := range m.ToolCalls {
				args, _ := json.Marshal(c.Args)
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:           c.ID,
					Type:         "function",
					FunctionCall: &llms.FunctionCall{Name: c.Name, Arguments: string(args)},
				})
			}
			out = append(out, mc)
		case RoleTool:
			// The OpenAI wire format wants one tool message per call.
			for _, r := range m.ToolResults {
				out = append(out, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: r.CallID,
						Name:       r.Name,
						Content:    r.Content,
					}},
				})
			}
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Text))
		}
	}
	return out
}

func langchainCompletion(resp *llms.ContentResponse) (*Completion, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, ErrEmptyResponse
	}
	choice := resp.Choices[0]
	out := &Completion{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := map[string]any{}
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				// Hand malformed arguments to the tool so it can report them.
				args = map[string]any{"_raw": tc.FunctionCall.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.FunctionCall.Name, Args: args})
	}
	if out.Text == "" && len(out.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// OpenAIEmbedder adapts a langchaingo embedder to the Embedder interface.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
}

func NewOpenAIEmbedder(client embeddings.EmbedderClient) (*OpenAIEmbedder, error) {
	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &OpenAIEmbedder{embedder: e}, nil
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return o.embedder.EmbedQuery(ctx, text)
}

func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return o.embedder.EmbedDocuments(ctx, texts)
}
