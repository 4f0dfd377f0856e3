// Package bot implements the system responder behind the reserved recipient
// address: the two-phase loading/result reply pattern backed by external text
// and speech generation collaborators.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/chat-relay/config"
	"github.com/onnwee/chat-relay/event"
	"github.com/onnwee/chat-relay/telemetry"
)

// Generator produces a text reply for a chat request.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer turns text into an audio file and returns its file name.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// requestTimeout bounds each external generation call. A hung provider turns
// into an error event for that one request, never a stuck dispatcher task.
const requestTimeout = 60 * time.Second

// SystemResponder answers messages addressed to the system address. Each
// request gets an immediate loading event and, from a supervised goroutine,
// a final chat/speech event or an error event. Failures are isolated
// per-request and never close the requesting connection.
type SystemResponder struct {
	chat    Generator
	speech  Synthesizer
	timeout time.Duration
}

// New wires the responder from config. Collaborators with missing credentials
// stay nil and produce error events when requested, so a partially configured
// deployment still relays user-to-user traffic.
func New(cfg *config.Config) *SystemResponder {
	r := &SystemResponder{timeout: requestTimeout}
	if err := cfg.ValidateBotReady(); err == nil {
		r.chat = NewChatClient(cfg)
	} else {
		slog.Warn("chat generation disabled", slog.Any("err", err))
	}
	if err := cfg.ValidateSpeechReady(); err == nil {
		r.speech = NewSpeechClient(cfg)
	} else {
		slog.Warn("speech synthesis disabled", slog.Any("err", err))
	}
	return r
}

// NewWithCollaborators builds a responder around explicit collaborators.
func NewWithCollaborators(chat Generator, speech Synthesizer) *SystemResponder {
	return &SystemResponder{chat: chat, speech: speech, timeout: requestTimeout}
}

// Respond implements relay.Responder.
func (r *SystemResponder) Respond(ctx context.Context, req event.Message, deliver func(event.Message)) {
	replyTo := req.MsgID
	deliver(event.New(event.SystemAddress, req.From, event.Loading(true), uuid.NewString(), &replyTo))

	telemetry.Go("bot-request", func() {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		var ev event.Event
		var err error
		telemetry.TimeFunc(telemetry.BotRequestDuration, func() {
			ev, err = r.handle(callCtx, req)
		})
		if err != nil {
			if telemetry.BotFailures != nil {
				telemetry.BotFailures.Inc()
			}
			slog.Error("system request failed",
				slog.String("msg_id", req.MsgID), slog.String("kind", string(req.Type)), slog.Any("err", err))
			ev = event.ServerError(err.Error())
		}
		deliver(event.New(event.SystemAddress, req.From, ev, uuid.NewString(), &replyTo))
	})
}

func (r *SystemResponder) handle(ctx context.Context, req event.Message) (event.Event, error) {
	switch req.Type {
	case event.KindChat:
		if r.chat == nil {
			return event.Event{}, fmt.Errorf("chat generation not configured")
		}
		text, err := r.chat.Generate(ctx, req.Event.Text)
		if err != nil {
			return event.Event{}, fmt.Errorf("chat generation: %w", err)
		}
		return event.Chat(text), nil
	case event.KindSpeech:
		if r.speech == nil {
			return event.Event{}, fmt.Errorf("speech synthesis not configured")
		}
		path, err := r.speech.Synthesize(ctx, req.Event.Text)
		if err != nil {
			return event.Event{}, fmt.Errorf("speech synthesis: %w", err)
		}
		return event.Speech(path), nil
	default:
		return event.Event{}, fmt.Errorf("unsupported system request kind %q", req.Type)
	}
}
