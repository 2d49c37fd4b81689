package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/loqalabs/loqa-interview/internal/pcm"
	"github.com/mattn/go-shellwords"
)

type discardPlayer struct{}

// NewDiscardPlayer drops audio; useful when the synthesizer plays by itself.
func NewDiscardPlayer() Player { return discardPlayer{} }

func (discardPlayer) Play(context.Context, SynthChunk) error { return nil }
func (discardPlayer) Finish(context.Context, string) error   { return nil }

type execPlayer struct {
	args []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	session string
}

// NewExecPlayer pipes raw PCM into command, started once per utterance.
// {sample_rate} and {channels} in the command are replaced from the audio.
func NewExecPlayer(command string) (Player, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("player command empty")
	}
	return &execPlayer{args: args}, nil
}

func (p *execPlayer) Play(ctx context.Context, chunk SynthChunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		args := make([]string, len(p.args))
		for i, a := range p.args {
			a = strings.ReplaceAll(a, "{sample_rate}", strconv.Itoa(chunk.SampleRate))
			a = strings.ReplaceAll(a, "{channels}", strconv.Itoa(chunk.Channels))
			args[i] = a
		}
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start player: %w", err)
		}
		p.cmd, p.stdin, p.session = cmd, stdin, chunk.SessionID
	}
	if len(chunk.PCM) == 0 {
		return nil
	}
	if _, err := p.stdin.Write(chunk.PCM); err != nil {
		return fmt.Errorf("write player audio: %w", err)
	}
	return nil
}

func (p *execPlayer) Finish(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.session != sessionID {
		return nil
	}
	p.stdin.Close()
	err := p.cmd.Wait()
	p.cmd, p.stdin, p.session = nil, nil, ""
	if err != nil {
		return fmt.Errorf("player failed: %w", err)
	}
	return nil
}

type wavPlayer struct {
	dir string

	mu      sync.Mutex
	buffers map[string]*wavBuffer
}

type wavBuffer struct {
	format pcm.Format
	data   []byte
}

// NewWAVPlayer writes each utterance to <dir>/<session>.wav.
func NewWAVPlayer(dir string) (Player, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create wav dir: %w", err)
	}
	return &wavPlayer{dir: dir, buffers: make(map[string]*wavBuffer)}, nil
}

func (p *wavPlayer) Play(_ context.Context, chunk SynthChunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := p.buffers[chunk.SessionID]
	if buf == nil {
		buf = &wavBuffer{format: pcm.Format{SampleRate: chunk.SampleRate, Channels: chunk.Channels}}
		p.buffers[chunk.SessionID] = buf
	}
	buf.data = append(buf.data, chunk.PCM...)
	return nil
}

func (p *wavPlayer) Finish(_ context.Context, sessionID string) error {
	p.mu.Lock()
	buf := p.buffers[sessionID]
	delete(p.buffers, sessionID)
	p.mu.Unlock()
	if buf == nil || len(buf.data) == 0 {
		return nil
	}

	f, err := os.Create(filepath.Join(p.dir, sessionID+".wav"))
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()
	return pcm.WriteWAV(f, buf.data, buf.format)
}
