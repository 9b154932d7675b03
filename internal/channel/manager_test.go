package channel

import (
	"context"
	"testing"
)

// fakeChannel is a minimal in-memory channel for manager tests.
type fakeChannel struct {
	name    string
	running bool
	sent    []OutboundMessage
}

func (f *fakeChannel) Name() string                    { return f.name }
func (f *fakeChannel) Start(context.Context) error     { f.running = true; return nil }
func (f *fakeChannel) Stop(context.Context) error      { f.running = false; return nil }
func (f *fakeChannel) IsRunning() bool                 { return f.running }
func (f *fakeChannel) OnMessage(func(InboundMessage))  {}
func (f *fakeChannel) UploadFile(_ context.Context, _, _ string) error { return nil }

func (f *fakeChannel) Send(_ context.Context, msg OutboundMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) SendStream(_ context.Context, threadID string, chunks <-chan string) error {
	var full string
	for chunk := range chunks {
		full += chunk
	}
	f.sent = append(f.sent, OutboundMessage{ThreadID: threadID, Text: full})
	return nil
}

func TestManagerStartStopAll(t *testing.T) {
	m := NewManager()
	a := &fakeChannel{name: "a"}
	b := &fakeChannel{name: "b"}
	m.Register(a)
	m.Register(b)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !a.running || !b.running {
		t.Fatal("expected all channels running")
	}

	m.StopAll(context.Background())
	if a.running || b.running {
		t.Fatal("expected all channels stopped")
	}
}

func TestManagerGet(t *testing.T) {
	m := NewManager()
	m.Register(&fakeChannel{name: "console"})

	if _, ok := m.Get("console"); !ok {
		t.Fatal("expected console channel")
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected miss for unknown channel")
	}
	if len(m.List()) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(m.List()))
	}
}

func TestFakeStreamReassembly(t *testing.T) {
	f := &fakeChannel{name: "x"}
	chunks := make(chan string, 3)
	chunks <- "hel"
	chunks <- "lo"
	close(chunks)

	if err := f.SendStream(context.Background(), "t", chunks); err != nil {
		t.Fatal(err)
	}
	if len(f.sent) != 1 || f.sent[0].Text != "hello" {
		t.Fatalf("unexpected reassembly: %+v", f.sent)
	}
}
