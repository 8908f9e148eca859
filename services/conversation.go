package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itish2003/courserag/llm"
	"github.com/itish2003/courserag/logger"
)

// FallbackAnswer is returned when the model produces no usable text.
const FallbackAnswer = "I'm sorry, I couldn't put together an answer to that. Please try rephrasing your question."

type loopState int

const (
	stateStart loopState = iota
	stateAwaitingModel
	stateExecutingTools
	stateDone
)

// ConversationLoop runs the bounded request/response rounds with the model.
type ConversationLoop struct {
	completer     llm.Completer
	maxToolRounds int
	modelTimeout  time.Duration
	log           *logger.Logger
}

func NewConversationLoop(completer llm.Completer, maxToolRounds int, modelTimeout time.Duration, log *logger.Logger) *ConversationLoop {
	if maxToolRounds < 0 {
		maxToolRounds = 0
	}
	return &ConversationLoop{
		completer:     completer,
		maxToolRounds: maxToolRounds,
		modelTimeout:  modelTimeout,
		log:           log.With("service", "ConversationLoop"),
	}
}

// LoopResult is the outcome of one Run.
type LoopResult struct {
	Answer      string
	ToolRounds  int
	ModelRounds int
	Fallback    bool
}

// Run answers query under the given system instructions. At most
// maxToolRounds rounds execute tools; the round after that is sent with
// tools disabled and its text, or FallbackAnswer, is final. The context is
// checked before every model round and before every tool call.
func (l *ConversationLoop) Run(ctx context.Context, system, query string, registry *ToolRegistry) (*LoopResult, error) {
	var (
		state      = stateStart
		messages   []llm.Message
		pending    *llm.Completion
		result     = &LoopResult{}
		toolsDefns []llm.ToolDefinition
	)
	if registry != nil {
		toolsDefns = registry.Definitions()
	}

	for state != stateDone {
		switch state {
		case stateStart:
			messages = []llm.Message{{Role: llm.RoleUser, Text: query}}
			state = stateAwaitingModel

		case stateAwaitingModel:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			final := result.ToolRounds >= l.maxToolRounds
			req := llm.CompletionRequest{
				System:       system,
				Messages:     messages,
				Tools:        toolsDefns,
				DisableTools: final && len(toolsDefns) > 0,
			}
			completion, err := l.complete(ctx, req)
			result.ModelRounds++
			if errors.Is(err, llm.ErrEmptyResponse) {
				l.log.Warn("model returned an empty response", "round", result.ModelRounds)
				result.Answer, result.Fallback = FallbackAnswer, true
				state = stateDone
				continue
			}
			if err != nil {
				return nil, err
			}
			if completion.WantsTools() && !final && registry != nil {
				pending = completion
				state = stateExecutingTools
				continue
			}
			if completion.WantsTools() {
				l.log.Warn("model requested tools after the round limit", "round", result.ModelRounds)
			}
			result.Answer = strings.TrimSpace(completion.Text)
			if result.Answer == "" {
				result.Answer, result.Fallback = FallbackAnswer, true
			}
			state = stateDone

		case stateExecutingTools:
			result.ToolRounds++
			messages = append(messages, llm.Message{
				Role:      llm.RoleAssistant,
				Text:      pending.Text,
				ToolCalls: pending.ToolCalls,
			})
			results := make([]llm.ToolResult, 0, len(pending.ToolCalls))
			for _, call := range pending.ToolCalls {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				results = append(results, registry.Execute(ctx, call))
			}
			messages = append(messages, llm.Message{Role: llm.RoleTool, ToolResults: results})
			l.log.Debug("tool round finished", "round", result.ToolRounds, "calls", len(results))
			pending = nil
			state = stateAwaitingModel
		}
	}
	return result, nil
}

// complete wraps one model call in the model timeout and maps its errors.
func (l *ConversationLoop) complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	callCtx := ctx
	if l.modelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.modelTimeout)
		defer cancel()
	}
	start := time.Now()
	completion, err := l.completer.Complete(callCtx, req)
	if err == nil {
		if completion == nil {
			return nil, llm.ErrEmptyResponse
		}
		l.log.Debug("model round", "took", time.Since(start), "tool_calls", len(completion.ToolCalls))
		return completion, nil
	}
	switch {
	case errors.Is(err, llm.ErrEmptyResponse):
		return nil, err
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w after %s", ErrModelTimeout, time.Since(start).Round(time.Millisecond))
	}
	return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
}
