package recognizer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const (
	classifyToolName        = "classify_intent"
	classifyToolDescription = "Classify the user's utterance into one of the listed intents and extract mentioned values."
)

// ErrNoToolCall is returned when the model answers without calling the
// classification tool.
var ErrNoToolCall = errors.New("model did not call " + classifyToolName)

// Intent is a closed-list entry offered to the model.
type Intent struct {
	Name        string
	Description string
}

type classifyInput struct {
	Intent   string            `json:"intent" jsonschema:"required,description=Name of the matching intent or None"`
	Score    float64           `json:"score" jsonschema:"description=Confidence from 0 to 1"`
	Entities map[string]string `json:"entities,omitempty" jsonschema:"description=Values the user mentioned keyed by a short name"`
}

type classifyOutput struct {
	Success bool `json:"success"`
}

// ChatModelRecognizer asks a tool-calling chat model to pick one intent
// from a closed list. Answers naming an intent outside the list count as
// None.
type ChatModelRecognizer struct {
	chatModel model.ToolCallingChatModel
	intents   []Intent
}

// NewChatModelRecognizer binds the classification tool to chatModel.
func NewChatModelRecognizer(ctx context.Context, chatModel model.ToolCallingChatModel, intents ...Intent) (*ChatModelRecognizer, error) {
	if len(intents) == 0 {
		return nil, errors.New("chat model recognizer needs at least one intent")
	}
	toolFunc := func(ctx context.Context, input *classifyInput) (*classifyOutput, error) {
		return &classifyOutput{Success: true}, nil
	}
	classifyTool, err := utils.InferTool(classifyToolName, classifyToolDescription, toolFunc)
	if err != nil {
		return nil, err
	}
	info, err := classifyTool.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool info: %w", err)
	}
	withTools, err := chatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return nil, err
	}
	return &ChatModelRecognizer{chatModel: withTools, intents: intents}, nil
}

// OpenAIConfig configures an OpenAI-compatible chat model.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIRecognizer builds a ChatModelRecognizer over an OpenAI-compatible
// endpoint.
func NewOpenAIRecognizer(ctx context.Context, cfg OpenAIConfig, intents ...Intent) (*ChatModelRecognizer, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return NewChatModelRecognizer(ctx, cm, intents...)
}

func (r *ChatModelRecognizer) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an intent recognizer for a conversational bot.\n")
	fmt.Fprintf(&b, "You MUST call the tool %s with arguments that match the tool schema.\n", classifyToolName)
	b.WriteString("Intents:\n")
	for _, in := range r.intents {
		fmt.Fprintf(&b, "- %s: %s\n", in.Name, in.Description)
	}
	fmt.Fprintf(&b, "- %s: none of the above\n", None)
	return b.String()
}

func (r *ChatModelRecognizer) Recognize(ctx context.Context, text string) (Result, error) {
	resp, err := r.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(r.systemPrompt()),
		schema.UserMessage(text),
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat model: %w", err)
	}

	var args string
	for _, tc := range resp.ToolCalls {
		if tc.Function.Name == classifyToolName {
			args = tc.Function.Arguments
			break
		}
	}
	if args == "" {
		return Result{}, ErrNoToolCall
	}

	var in classifyInput
	if err := sonic.UnmarshalString(args, &in); err != nil {
		return Result{}, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	res := Result{Text: text, Intents: map[string]float64{}}
	known := slices.ContainsFunc(r.intents, func(i Intent) bool { return i.Name == in.Intent })
	if !known {
		res.Intents[None] = 1
		return res, nil
	}
	score := in.Score
	if score <= 0 || score > 1 {
		score = 1
	}
	res.Intents[in.Intent] = score
	for k, v := range in.Entities {
		if res.Entities == nil {
			res.Entities = make(map[string]any, len(in.Entities))
		}
		res.Entities[k] = v
	}
	return res, nil
}
