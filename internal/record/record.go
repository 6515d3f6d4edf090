// Package record captures microphone audio with PortAudio and streams it
// into a temporary WAV file.
package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/log"
)

// TempPrefix marks files created by the recorder; leftovers with this
// prefix are safe to delete at startup.
const TempPrefix = "RecordTemp_"

var (
	ErrBusy       = errors.New("recorder not idle")
	ErrNotRunning = errors.New("recorder not running")
)

// State represents recorder state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateCanceled:
		return "canceled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is returned when a recording completes or is canceled.
type Result struct {
	WavPath  string
	Canceled bool
	Frames   int
}

// Options configures capture.
type Options struct {
	Channels   int
	SampleRate int
	TempDir    string
}

// Recorder manages PortAudio recording and streaming WAV writing.
type Recorder struct {
	mu     sync.Mutex
	state  State
	opts   Options
	stop   context.CancelFunc
	done   chan outcome
	logger zerolog.Logger
}

type outcome struct {
	res Result
	err error
}

// New creates a recorder.
func New(opts Options) *Recorder {
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	return &Recorder{opts: opts, logger: log.Component("record")}
}

// Start opens the default input device and begins recording. It returns
// once the stream is running or failed to start.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrBusy
	}
	r.state = StateRecording
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.stop = cancel
	r.done = make(chan outcome, 1)
	r.mu.Unlock()

	started := make(chan error, 1)
	go r.recordLoop(loopCtx, started)
	if err := <-started; err != nil {
		<-r.done
		return err
	}
	return nil
}

// Stop requests a clean stop and waits for the WAV file to be finalized.
func (r *Recorder) Stop() (Result, error) {
	return r.end(StateStopping)
}

// Cancel stops recording and deletes the partial file.
func (r *Recorder) Cancel() (Result, error) {
	return r.end(StateCanceled)
}

func (r *Recorder) end(next State) (Result, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return Result{}, ErrNotRunning
	}
	r.state = next
	stop, done := r.stop, r.done
	r.mu.Unlock()

	stop()
	o := <-done
	return o.res, o.err
}

// State returns the current recorder state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) canceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateCanceled
}

func (r *Recorder) finish(res Result, err error) {
	r.mu.Lock()
	r.state = StateIdle
	r.stop = nil
	r.mu.Unlock()
	r.done <- outcome{res, err}
}

func (r *Recorder) recordLoop(ctx context.Context, started chan<- error) {
	path := TempPath(r.opts.TempDir, "wav")
	fail := func(err error) {
		r.finish(Result{}, err)
		started <- err
	}

	if err := portaudio.Initialize(); err != nil {
		fail(fmt.Errorf("portaudio init failed: %w", err))
		return
	}
	defer portaudio.Terminate()

	in := make([]int16, 1024*r.opts.Channels)
	stream, err := portaudio.OpenDefaultStream(r.opts.Channels, 0, float64(r.opts.SampleRate), len(in)/r.opts.Channels, in)
	if err != nil {
		fail(fmt.Errorf("open stream failed: %w", err))
		return
	}
	defer stream.Close()

	sink, err := CreateSink(path, r.opts.SampleRate, r.opts.Channels)
	if err != nil {
		fail(err)
		return
	}
	if err := stream.Start(); err != nil {
		sink.Abort()
		fail(fmt.Errorf("start stream failed: %w", err))
		return
	}
	r.logger.Debug().Str("path", path).Int("rate", r.opts.SampleRate).Msg("recording started")
	started <- nil

	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			r.logger.Warn().Err(err).Msg("stream read error")
			continue
		}
		if err := sink.Write(in); err != nil {
			_ = stream.Stop()
			sink.Abort()
			r.finish(Result{}, err)
			return
		}
	}
	_ = stream.Stop()

	if r.canceled() {
		sink.Abort()
		r.logger.Debug().Msg("recording canceled")
		r.finish(Result{Canceled: true}, nil)
		return
	}
	if err := sink.Close(); err != nil {
		r.finish(Result{}, err)
		return
	}
	r.logger.Debug().Str("path", path).Int("frames", sink.Frames()).Msg("recording finished")
	r.finish(Result{WavPath: path, Frames: sink.Frames()}, nil)
}

// Sink streams interleaved 16-bit PCM into a WAV file.
type Sink struct {
	path   string
	file   *os.File
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	frames int
}

// CreateSink creates the file at path and writes a WAV header.
func CreateSink(path string, rate, channels int) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav failed: %w", err)
	}
	return &Sink{
		path: path,
		file: f,
		enc:  wav.NewEncoder(f, rate, 16, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}, nil
}

// Write appends interleaved samples.
func (s *Sink) Write(samples []int16) error {
	if cap(s.buf.Data) < len(samples) {
		s.buf.Data = make([]int, len(samples))
	}
	s.buf.Data = s.buf.Data[:len(samples)]
	for i, v := range samples {
		s.buf.Data[i] = int(v)
	}
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	s.frames += len(samples) / s.buf.Format.NumChannels
	return nil
}

// Frames is the number of frames written so far.
func (s *Sink) Frames() int { return s.frames }

// Close finalizes the header. The file is removed if that fails.
func (s *Sink) Close() error {
	if err := s.enc.Close(); err != nil {
		s.file.Close()
		os.Remove(s.path)
		return fmt.Errorf("wav close failed: %w", err)
	}
	return s.file.Close()
}

// Abort discards the file.
func (s *Sink) Abort() {
	_ = s.enc.Close()
	_ = s.file.Close()
	_ = os.Remove(s.path)
}

// TempPath returns a fresh RecordTemp_ path with the given extension.
func TempPath(dir, ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, TempPrefix+id+"."+ext)
}

// CleanupTemp removes leftover recorder files from dir and returns how
// many were deleted.
func CleanupTemp(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	l := log.Component("record")
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			l.Warn().Err(err).Str("path", path).Msg("failed to remove leftover temp file")
			continue
		}
		n++
	}
	return n, nil
}
