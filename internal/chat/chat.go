// Package chat is the turn boundary: it loads a session, runs the workflow
// for one utterance, and saves the result. Turns for the same session are
// serialized; different sessions run in parallel.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

// Runner executes one turn against a copy of the session.
type Runner interface {
	Run(ctx context.Context, s *sessions.Session, utterance string) (*sessions.Session, string)
}

// Reply is the outcome of one turn.
type Reply struct {
	SessionID            string                    `json:"session_id"`
	Message              string                    `json:"message"`
	Language             string                    `json:"language"`
	AwaitingConfirmation bool                      `json:"awaiting_confirmation"`
	PendingArtifact      *sessions.PendingArtifact `json:"pending_artifact,omitempty"`
	ReadyEntities        []string                  `json:"ready_entities"`
	Candidates           int                       `json:"candidates"`
}

// System defines the turn boundary.
type System interface {
	Handler() *Handler
	PostTurn(ctx context.Context, sessionID, text string) (*Reply, error)
}

type orchestrator struct {
	runner   Runner
	sessions sessions.System
	locks    *keyedMutex
	cfg      Config
	logger   *slog.Logger
}

// New creates the turn boundary over runner and the session store.
func New(cfg *Config, runner Runner, store sessions.System, logger *slog.Logger) System {
	return &orchestrator{
		runner:   runner,
		sessions: store,
		locks:    newKeyedMutex(),
		cfg:      *cfg,
		logger:   logger.With("system", "chat"),
	}
}

func (o *orchestrator) Handler() *Handler {
	return NewHandler(o, o.cfg.Model, o.logger)
}

// PostTurn runs one turn for sessionID, creating the session on first use.
// Errors come only from an invalid request or the session store; workflow
// failures are answered in the reply.
func (o *orchestrator) PostTurn(ctx context.Context, sessionID, text string) (*Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	text = strings.TrimSpace(text)
	if sessionID == "" || text == "" {
		return nil, fmt.Errorf("%w: session id and message are required", ErrInvalidRequest)
	}

	unlock := o.locks.lock(sessionID)
	defer unlock()

	s, err := o.sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		s = sessions.New(sessionID)
		o.logger.InfoContext(ctx, "session created", "session", sessionID)
	} else if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	runCtx := ctx
	if d := o.cfg.TurnTimeoutDuration(); d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	out, msg := o.runner.Run(runCtx, s, text)

	if err := out.CheckInvariants(); err != nil {
		o.logger.ErrorContext(ctx, "turn left session inconsistent, clearing confirmation",
			"session", sessionID, "error", err)
		out.AwaitingConfirmation = false
		out.PendingArtifact = nil
	}

	if err := o.sessions.Save(ctx, out); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	o.logger.InfoContext(ctx, "turn complete",
		"session", sessionID,
		"language", out.Language,
		"awaiting", out.AwaitingConfirmation,
		"ready", len(out.ReadyEntities),
	)

	return &Reply{
		SessionID:            out.ID,
		Message:              msg,
		Language:             out.Language,
		AwaitingConfirmation: out.AwaitingConfirmation,
		PendingArtifact:      out.PendingArtifact,
		ReadyEntities:        append([]string{}, out.ReadyEntities...),
		Candidates:           len(out.CandidateEntities),
	}, nil
}
