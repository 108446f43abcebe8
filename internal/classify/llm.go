package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/prompts"
	"github.com/zxlitianshu/Kekari-agent/pkg/client"
	"github.com/zxlitianshu/Kekari-agent/pkg/formatting"
)

const completionsPath = "/v1/chat/completions"

// maxCandidates bounds the candidate list sent to the model.
const maxCandidates = 10

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type llm struct {
	client   *client.Client
	cfg      *Config
	prompts  prompts.System
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a Classifier that calls an OpenAI-compatible endpoint.
// Stage instructions come from ps so that active overrides apply.
func New(cfg *Config, ps prompts.System, logger *slog.Logger) Classifier {
	return &llm{
		client:   client.New(&cfg.Config),
		cfg:      cfg,
		prompts:  ps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("system", "classify"),
	}
}

func (l *llm) Route(ctx context.Context, in RouteInput) (RouteDecision, error) {
	in.History = l.tail(in.History)
	in.Candidates = limit(in.Candidates)
	return complete[RouteDecision](ctx, l, prompts.StageRoute, in)
}

func (l *llm) Confirm(ctx context.Context, in ConfirmInput) (ConfirmDecision, error) {
	in.History = l.tail(in.History)
	return complete[ConfirmDecision](ctx, l, prompts.StageConfirmation, in)
}

func (l *llm) Select(ctx context.Context, in SelectInput) (SelectDecision, error) {
	in.History = l.tail(in.History)
	return complete[SelectDecision](ctx, l, prompts.StageSelection, in)
}

func (l *llm) Compose(ctx context.Context, in ComposeInput) (string, error) {
	in.History = l.tail(in.History)
	in.Candidates = limit(in.Candidates)

	content, err := l.chat(ctx, prompts.StageCompose, in)
	if err != nil {
		return "", err
	}
	return content, nil
}

// complete runs a JSON-producing stage and validates the decoded decision.
func complete[T any](ctx context.Context, l *llm, stage prompts.Stage, input any) (T, error) {
	var zero T

	content, err := l.chat(ctx, stage, input)
	if err != nil {
		return zero, err
	}

	decision, err := formatting.Parse[T](content)
	if err != nil {
		l.logger.WarnContext(ctx, "unparseable decision", "stage", stage, "error", err)
		return zero, fmt.Errorf("%s: %w: %w", stage, ErrInvalidDecision, err)
	}

	if err := l.validate.Struct(decision); err != nil {
		l.logger.WarnContext(ctx, "decision failed validation", "stage", stage, "error", err)
		return zero, fmt.Errorf("%s: %w: %w", stage, ErrInvalidDecision, err)
	}

	return decision, nil
}

func (l *llm) chat(ctx context.Context, stage prompts.Stage, input any) (string, error) {
	system, err := l.systemPrompt(ctx, stage)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("%s: marshal input: %w", stage, err)
	}

	req := chatRequest{
		Model: l.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: string(payload)},
		},
		Temperature: l.cfg.Temperature,
		MaxTokens:   l.cfg.MaxTokens,
	}

	var resp chatResponse
	if err := l.client.Post(ctx, completionsPath, req, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", stage, ErrEmptyResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s: %w", stage, ErrEmptyResponse)
	}

	l.logger.DebugContext(ctx, "classifier response", "stage", stage, "length", len(content))
	return content, nil
}

// systemPrompt joins the effective instructions with the immutable response
// spec for stage.
func (l *llm) systemPrompt(ctx context.Context, stage prompts.Stage) (string, error) {
	var instructions, spec string
	var err error

	if l.prompts != nil {
		instructions, err = l.prompts.Instructions(ctx, stage)
	} else {
		instructions, err = prompts.Instructions(stage)
	}
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	if spec, err = prompts.Spec(stage); err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	return instructions + "\n\n" + spec, nil
}

func (l *llm) tail(history []Message) []Message {
	if n := l.cfg.HistorySize; n > 0 && len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func limit(candidates []catalog.Entity) []catalog.Entity {
	if len(candidates) > maxCandidates {
		return candidates[:maxCandidates]
	}
	return candidates
}
