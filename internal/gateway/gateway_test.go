package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/message"
)

type fakeRecorder struct {
	mu     sync.Mutex
	states []message.RecorderState
	err    error
}

func (f *fakeRecorder) SetRecorderState(ctx context.Context, s message.RecorderState) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, s)
	if f.err != nil {
		return nil, f.err
	}
	return string(s), nil
}

type fakeClipboard struct {
	mu    sync.Mutex
	texts []string
	err   error
	block chan struct{}
	panic bool
}

func (f *fakeClipboard) SetClipboardText(ctx context.Context, text string) (any, error) {
	if f.panic {
		panic("clipboard exploded")
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil, f.err
}

type fakeToaster struct {
	mu     sync.Mutex
	toasts []message.ToastOptions
	delay  time.Duration
}

func (f *fakeToaster) Toast(ctx context.Context, opts message.ToastOptions) any {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, opts)
	return "toast-1"
}

func (f *fakeToaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toasts)
}

type fakeSound struct {
	played []message.Sound
	err    error
}

func (f *fakeSound) PlaySound(ctx context.Context, s message.Sound) (any, error) {
	f.played = append(f.played, s)
	return "played:" + string(s), f.err
}

type fixture struct {
	rec   *fakeRecorder
	clip  *fakeClipboard
	toast *fakeToaster
	sound *fakeSound
	gw    *Gateway
}

func newFixture(timeout time.Duration) *fixture {
	f := &fixture{
		rec:   &fakeRecorder{},
		clip:  &fakeClipboard{},
		toast: &fakeToaster{},
		sound: &fakeSound{},
	}
	f.gw = New(Collaborators{Recorder: f.rec, Clipboard: f.clip, Toaster: f.toast, Sound: f.sound}, timeout)
	return f
}

var testSender = Sender{Origin: "https://whispering.app", Transport: "test"}

func TestInvalidMessageNeverReachesCollaborators(t *testing.T) {
	inputs := []string{
		`{"message":"unknown"}`,
		`{"message":"setRecorderState","recorderState":"NOPE"}`,
		`not json`,
		`{"message":"playSound"}`,
	}
	for _, in := range inputs {
		f := newFixture(time.Second)
		env := f.gw.Handle(context.Background(), []byte(in), testSender)
		if env.IsSuccess {
			t.Fatalf("%s: expected failure", in)
		}
		if env.Error.Kind != apperr.KindInvalidMessageFormat {
			t.Fatalf("%s: expected InvalidMessageFormat, got %s", in, env.Error.Kind)
		}
		if len(f.rec.states)+len(f.clip.texts)+len(f.sound.played) != 0 {
			t.Fatalf("%s: collaborator invoked", in)
		}
		if f.toast.count() != 1 || f.toast.toasts[0].Variant != message.ToastError {
			t.Fatalf("%s: expected one error toast, got %#v", in, f.toast.toasts)
		}
	}
}

func TestRecorderStateForwardedUnchanged(t *testing.T) {
	f := newFixture(time.Second)
	env := f.gw.Handle(context.Background(), []byte(`{"message":"setRecorderState","recorderState":"LOADING"}`), testSender)
	if !env.IsSuccess || env.Data != "LOADING" {
		t.Fatalf("unexpected envelope: %#v", env)
	}
	if len(f.rec.states) != 1 || f.rec.states[0] != message.RecorderLoading {
		t.Fatalf("unexpected states: %v", f.rec.states)
	}

	domainErr := apperr.New(apperr.KindRecorder, "Recorder busy", "try later")
	f.rec.err = domainErr
	env = f.gw.Handle(context.Background(), []byte(`{"message":"setRecorderState","recorderState":"IDLE"}`), testSender)
	if env.IsSuccess {
		t.Fatalf("expected failure")
	}
	if env.Error != domainErr {
		t.Fatalf("expected collaborator error passed through, got %#v", env.Error)
	}
	if f.toast.count() != 1 || f.toast.toasts[0].Title != "Recorder busy" {
		t.Fatalf("expected error toast, got %#v", f.toast.toasts)
	}
}

func TestToastAlwaysSucceeds(t *testing.T) {
	f := newFixture(time.Second)
	raw := `{"message":"toast","toastOptions":{"variant":"info","title":"Hi","description":"there"}}`
	env := f.gw.Handle(context.Background(), []byte(raw), testSender)
	if !env.IsSuccess {
		t.Fatalf("expected success, got %#v", env.Error)
	}
	if env.Data != "toast-1" {
		t.Fatalf("expected toast id as data, got %#v", env.Data)
	}
	if f.toast.count() != 1 || f.toast.toasts[0].Title != "Hi" {
		t.Fatalf("unexpected toasts: %#v", f.toast.toasts)
	}
}

func TestPlaySoundExample(t *testing.T) {
	f := newFixture(time.Second)
	env := f.gw.Handle(context.Background(), []byte(`{"message":"playSound","sound":"ding"}`), testSender)
	if !env.IsSuccess || env.Data != "played:ding" {
		t.Fatalf("unexpected envelope: %#v", env)
	}

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"isSuccess":true,"data":"played:ding"}` {
		t.Fatalf("unexpected wire form: %s", b)
	}
}

func TestUnknownMessageWireForm(t *testing.T) {
	f := newFixture(time.Second)
	env := f.gw.Handle(context.Background(), []byte(`{"message":"unknown"}`), testSender)
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.IsSuccess || decoded.Error.Kind != apperr.KindInvalidMessageFormat {
		t.Fatalf("unexpected decoded envelope: %s", b)
	}
}

func TestForeignCollaboratorErrorBecomesInternal(t *testing.T) {
	f := newFixture(time.Second)
	f.clip.err = errors.New("xclip missing")
	env := f.gw.Handle(context.Background(), []byte(`{"message":"setClipboardText","transcribedText":"hi"}`), testSender)
	if env.IsSuccess || env.Error.Kind != apperr.KindInternal {
		t.Fatalf("unexpected envelope: %#v", env)
	}
}

func TestIdempotentClassification(t *testing.T) {
	f := newFixture(time.Second)
	raw := []byte(`{"message":"setClipboardText","transcribedText":"same"}`)
	for i := 0; i < 5; i++ {
		if env := f.gw.Handle(context.Background(), raw, testSender); !env.IsSuccess {
			t.Fatalf("attempt %d failed: %#v", i, env.Error)
		}
	}
	f.clip.err = apperr.New(apperr.KindClipboard, "denied", "")
	for i := 0; i < 5; i++ {
		if env := f.gw.Handle(context.Background(), raw, testSender); env.IsSuccess {
			t.Fatalf("attempt %d unexpectedly succeeded", i)
		}
	}
}

func TestDispatchTimeout(t *testing.T) {
	f := newFixture(20 * time.Millisecond)
	f.clip.block = make(chan struct{})
	defer close(f.clip.block)

	env := f.gw.Handle(context.Background(), []byte(`{"message":"setClipboardText","transcribedText":"slow"}`), testSender)
	if env.IsSuccess || env.Error.Kind != apperr.KindCollaboratorTimeout {
		t.Fatalf("expected timeout, got %#v", env)
	}
	if !errors.Is(env.Error, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", env.Error.Err)
	}
}

func TestSlowToastIgnoresDispatchTimeout(t *testing.T) {
	f := newFixture(50 * time.Millisecond)
	f.toast.delay = 200 * time.Millisecond

	raw := `{"message":"toast","toastOptions":{"variant":"success","title":"Copied","description":"slow desktop"}}`
	env := f.gw.Handle(context.Background(), []byte(raw), testSender)
	if !env.IsSuccess {
		t.Fatalf("toast must succeed regardless of timeout, got %#v", env.Error)
	}
	if f.toast.count() != 1 {
		t.Fatalf("expected a single toast, got %d", f.toast.count())
	}
}

func TestFailureLogHasDistinctErrorKeys(t *testing.T) {
	var buf bytes.Buffer
	log.Init(&buf, "debug", false)
	defer log.Init(os.Stderr, "info", false)

	f := newFixture(20 * time.Millisecond)
	f.clip.block = make(chan struct{})
	defer close(f.clip.block)
	f.gw.Handle(context.Background(), []byte(`{"message":"setClipboardText","transcribedText":"slow"}`), testSender)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, `"level":"warn"`) {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no warning logged: %s", buf.String())
	}
	if n := strings.Count(line, `"error":`); n != 1 {
		t.Fatalf("expected one error key, got %d in %s", n, line)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		t.Fatal(err)
	}
	if fields["error_kind"] != string(apperr.KindCollaboratorTimeout) {
		t.Fatalf("unexpected error_kind: %#v", fields["error_kind"])
	}
}

func TestCollaboratorPanicIsContained(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Second} {
		f := newFixture(timeout)
		f.clip.panic = true
		env := f.gw.Handle(context.Background(), []byte(`{"message":"setClipboardText","transcribedText":"x"}`), testSender)
		if env.IsSuccess || env.Error.Kind != apperr.KindInternal {
			t.Fatalf("timeout=%s: expected internal error, got %#v", timeout, env)
		}
	}
}

func TestMissingCollaborator(t *testing.T) {
	gw := New(Collaborators{}, 0)
	env := gw.Handle(context.Background(), []byte(`{"message":"playSound","sound":"stop"}`), testSender)
	if env.IsSuccess {
		t.Fatalf("expected failure without sound player")
	}
	env = gw.Handle(context.Background(), []byte(`{"message":"toast","toastOptions":{"variant":"info","title":"t","description":""}}`), testSender)
	if !env.IsSuccess {
		t.Fatalf("toast must succeed without a configured toaster: %#v", env.Error)
	}
}

func TestServeRespondsExactlyOnce(t *testing.T) {
	f := newFixture(time.Second)
	f.sound.err = apperr.New(apperr.KindSound, "no output", "")

	inputs := []string{
		`{"message":"playSound","sound":"ding"}`,
		`{"message":"unknown"}`,
		`{"message":"setClipboardText","transcribedText":"x"}`,
		`{"message":"toast","toastOptions":{"variant":"info","title":"t","description":"d"}}`,
	}

	var (
		mu    sync.Mutex
		count = map[int]int{}
		wg    sync.WaitGroup
	)
	for i, in := range inputs {
		i := i
		wg.Add(1)
		Serve(context.Background(), f.gw, []byte(in), testSender, func(Envelope) {
			mu.Lock()
			count[i]++
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := range inputs {
		if count[i] != 1 {
			t.Fatalf("input %d responded %d times", i, count[i])
		}
	}
}

func TestServeRecoversHandlerPanic(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, raw []byte, sender Sender) Envelope {
		panic("broken handler")
	})
	got := make(chan Envelope, 2)
	Serve(context.Background(), h, nil, testSender, func(env Envelope) { got <- env })

	select {
	case env := <-got:
		if env.IsSuccess || env.Error.Kind != apperr.KindInternal {
			t.Fatalf("unexpected envelope: %#v", env)
		}
	case <-time.After(time.Second):
		t.Fatalf("no response")
	}
	select {
	case <-got:
		t.Fatalf("responded twice")
	case <-time.After(20 * time.Millisecond):
	}
}
