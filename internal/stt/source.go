package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-interview/internal/pcm"
	"github.com/mattn/go-shellwords"
)

// Stream delivers fixed-size PCM16LE frames until io.EOF.
type Stream interface {
	Format() pcm.Format
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// Source opens an audio stream from the given input device.
type Source interface {
	Open(ctx context.Context, device string) (Stream, error)
}

type execSource struct {
	args    []string
	format  pcm.Format
	frameMS int
}

// NewExecSource captures audio by running command and reading raw PCM from
// its stdout. {device}, {sample_rate} and {channels} are substituted.
func NewExecSource(command string, format pcm.Format, frameMS int) (Source, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("capture command empty")
	}
	return &execSource{args: args, format: format, frameMS: frameMS}, nil
}

func (s *execSource) Open(ctx context.Context, device string) (Stream, error) {
	if device == "" {
		device = "default"
	}
	args := make([]string, len(s.args))
	for i, a := range s.args {
		a = strings.ReplaceAll(a, "{device}", device)
		a = strings.ReplaceAll(a, "{sample_rate}", strconv.Itoa(s.format.SampleRate))
		a = strings.ReplaceAll(a, "{channels}", strconv.Itoa(s.format.Channels))
		args[i] = a
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &RecognitionError{Kind: KindAudioCapture, Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &RecognitionError{Kind: KindAudioCapture, Err: fmt.Errorf("start capture: %w", err)}
	}
	return &execStream{
		cmd:    cmd,
		stdout: stdout,
		stderr: &stderr,
		cancel: cancel,
		format: s.format,
		size:   s.format.BytesPer(s.frameMS),
	}, nil
}

type execStream struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr *strings.Builder
	cancel context.CancelFunc
	format pcm.Format
	size   int
	read   int

	once    sync.Once
	waitErr error
}

func (s *execStream) Format() pcm.Format { return s.format }

func (s *execStream) ReadFrame(_ context.Context) ([]byte, error) {
	frame := make([]byte, s.size)
	n, err := io.ReadFull(s.stdout, frame)
	s.read += n
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return frame[:n-n%2], nil
	case errors.Is(err, io.EOF):
		if waitErr := s.wait(); waitErr != nil && s.read == 0 {
			return nil, &RecognitionError{Kind: KindAudioCapture, Err: fmt.Errorf("capture failed: %w: %s", waitErr, strings.TrimSpace(s.stderr.String()))}
		}
		return nil, io.EOF
	default:
		return nil, &RecognitionError{Kind: KindAudioCapture, Err: err}
	}
}

func (s *execStream) wait() error {
	s.once.Do(func() { s.waitErr = s.cmd.Wait() })
	return s.waitErr
}

func (s *execStream) Close() error {
	s.cancel()
	_ = s.wait()
	return nil
}

type wavSource struct {
	path     string
	frameMS  int
	realtime bool
}

// NewWAVSource replays a recorded answer. With realtime set frames are paced
// at their natural rate.
func NewWAVSource(path string, frameMS int, realtime bool) Source {
	return &wavSource{path: path, frameMS: frameMS, realtime: realtime}
}

func (s *wavSource) Open(_ context.Context, _ string) (Stream, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &RecognitionError{Kind: KindAudioCapture, Err: err}
	}
	defer f.Close()
	data, format, err := pcm.ReadWAV(f)
	if err != nil {
		return nil, &RecognitionError{Kind: KindAudioCapture, Err: err}
	}
	return newBufferStream(data, format, s.frameMS, s.realtime), nil
}

// Segment is a run of synthetic audio at a fixed amplitude; zero is silence.
type Segment struct {
	Duration  time.Duration
	Amplitude int16
}

type scriptedSource struct {
	format   pcm.Format
	frameMS  int
	realtime bool
	segments []Segment
	err      error
}

// NewScriptedSource produces the given segments as a square wave. It stands in
// for a microphone in tests and in mock mode.
func NewScriptedSource(format pcm.Format, frameMS int, realtime bool, segments ...Segment) Source {
	return &scriptedSource{format: format, frameMS: frameMS, realtime: realtime, segments: segments}
}

// NewFailingSource fails every Open with err.
func NewFailingSource(err error) Source {
	return &scriptedSource{err: err}
}

func (s *scriptedSource) Open(context.Context, string) (Stream, error) {
	if s.err != nil {
		return nil, s.err
	}
	var data []byte
	for _, seg := range s.segments {
		data = append(data, Tone(s.format, seg.Duration, seg.Amplitude)...)
	}
	return newBufferStream(data, s.format, s.frameMS, s.realtime), nil
}

// Tone returns d of square wave PCM at amplitude amp.
func Tone(format pcm.Format, d time.Duration, amp int16) []byte {
	n := format.BytesPer(int(d / time.Millisecond))
	out := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		v := amp
		if (i/2)%2 == 1 {
			v = -amp
		}
		out[i] = byte(uint16(v))
		out[i+1] = byte(uint16(v) >> 8)
	}
	return out
}

type bufferStream struct {
	data     []byte
	format   pcm.Format
	size     int
	pace     time.Duration
	offset   int
	realtime bool
}

func newBufferStream(data []byte, format pcm.Format, frameMS int, realtime bool) *bufferStream {
	return &bufferStream{
		data:     data,
		format:   format,
		size:     format.BytesPer(frameMS),
		pace:     time.Duration(frameMS) * time.Millisecond,
		realtime: realtime,
	}
}

func (s *bufferStream) Format() pcm.Format { return s.format }

func (s *bufferStream) ReadFrame(ctx context.Context) ([]byte, error) {
	if s.offset >= len(s.data) {
		return nil, io.EOF
	}
	if s.realtime {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pace):
		}
	}
	end := s.offset + s.size
	if end > len(s.data) {
		end = len(s.data)
	}
	frame := s.data[s.offset:end]
	s.offset = end
	return frame, nil
}

func (s *bufferStream) Close() error { return nil }
