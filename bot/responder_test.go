package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/chat-relay/event"
)

type fakeGenerator struct {
	reply string
	err   error
	delay time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type fakeSynthesizer struct {
	name string
	err  error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	return f.name, f.err
}

// collect returns a deliver func plus a receiver for the delivered events.
func collect() (func(event.Message), chan event.Message) {
	ch := make(chan event.Message, 8)
	var mu sync.Mutex
	return func(m event.Message) {
		mu.Lock()
		defer mu.Unlock()
		ch <- m
	}, ch
}

func recvReply(t *testing.T, ch chan event.Message) event.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for responder event")
		return event.Message{}
	}
}

func TestChatRequestTwoPhases(t *testing.T) {
	r := NewWithCollaborators(&fakeGenerator{reply: "the sky is `sky`"}, nil)
	deliver, ch := collect()

	req := event.New(42, event.SystemAddress, event.Chat("天空"), "m1", nil)
	r.Respond(context.Background(), req, deliver)

	loading := recvReply(t, ch)
	if loading.Type != event.KindLoading || !loading.Event.Loading {
		t.Fatalf("first event = %+v, want loading(true)", loading)
	}
	if loading.From != event.SystemAddress || loading.To != 42 {
		t.Errorf("loading addressed %d->%d, want 0->42", loading.From, loading.To)
	}
	if loading.ReplyMsgID == nil || *loading.ReplyMsgID != "m1" {
		t.Errorf("loading replyMsgId = %v, want m1", loading.ReplyMsgID)
	}

	final := recvReply(t, ch)
	if final.Type != event.KindChat || final.Event.Text != "the sky is `sky`" {
		t.Fatalf("final event = %+v, want generated chat", final)
	}
	if final.ReplyMsgID == nil || *final.ReplyMsgID != "m1" {
		t.Errorf("final replyMsgId = %v, want m1", final.ReplyMsgID)
	}
	if final.MsgID == loading.MsgID {
		t.Error("loading and final events must have distinct message ids")
	}
}

func TestSpeechRequest(t *testing.T) {
	r := NewWithCollaborators(nil, &fakeSynthesizer{name: "CAFEBABE.mp3"})
	deliver, ch := collect()

	req := event.New(42, event.SystemAddress, event.Speech("你好"), "m1", nil)
	r.Respond(context.Background(), req, deliver)

	recvReply(t, ch) // loading
	final := recvReply(t, ch)
	if final.Type != event.KindSpeech || final.Event.Text != "CAFEBABE.mp3" {
		t.Fatalf("final event = %+v, want speech file", final)
	}
}

func TestCollaboratorFailureBecomesErrorEvent(t *testing.T) {
	r := NewWithCollaborators(&fakeGenerator{err: errors.New("upstream 500")}, nil)
	deliver, ch := collect()

	req := event.New(42, event.SystemAddress, event.Chat("hello"), "m1", nil)
	r.Respond(context.Background(), req, deliver)

	recvReply(t, ch) // loading
	final := recvReply(t, ch)
	if final.Type != event.KindError {
		t.Fatalf("final event = %+v, want error", final)
	}
	if final.ReplyMsgID == nil || *final.ReplyMsgID != "m1" {
		t.Errorf("error replyMsgId = %v, want m1", final.ReplyMsgID)
	}
}

func TestUnconfiguredCollaboratorBecomesErrorEvent(t *testing.T) {
	r := NewWithCollaborators(nil, nil)
	deliver, ch := collect()

	r.Respond(context.Background(), event.New(42, 0, event.Chat("hi"), "m1", nil), deliver)
	recvReply(t, ch) // loading
	if final := recvReply(t, ch); final.Type != event.KindError {
		t.Fatalf("final event = %+v, want error", final)
	}
}

func TestUnsupportedKindBecomesErrorEvent(t *testing.T) {
	r := NewWithCollaborators(&fakeGenerator{reply: "x"}, nil)
	deliver, ch := collect()

	r.Respond(context.Background(), event.New(42, 0, event.Loading(true), "m1", nil), deliver)
	recvReply(t, ch) // loading
	if final := recvReply(t, ch); final.Type != event.KindError {
		t.Fatalf("final event = %+v, want error", final)
	}
}

func TestSlowCollaboratorTimesOut(t *testing.T) {
	r := NewWithCollaborators(&fakeGenerator{reply: "late", delay: time.Hour}, nil)
	r.timeout = 50 * time.Millisecond
	deliver, ch := collect()

	r.Respond(context.Background(), event.New(42, 0, event.Chat("hi"), "m1", nil), deliver)
	recvReply(t, ch) // loading
	if final := recvReply(t, ch); final.Type != event.KindError {
		t.Fatalf("final event = %+v, want timeout error", final)
	}
}
