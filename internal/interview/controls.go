package interview

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// Action is a candidate command.
type Action int

const (
	ActionListen Action = iota
	ActionStop
	ActionSkip
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionListen:
		return "listen"
	case ActionStop:
		return "stop"
	case ActionSkip:
		return "skip"
	case ActionQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Controls delivers candidate actions. A closed channel means no more input.
type Controls interface {
	Actions() <-chan Action
}

// ParseAction maps a terminal line to an action. An empty line toggles the
// microphone like the original start/stop button.
func ParseAction(line string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "l", "listen", "start":
		return ActionListen, true
	case "x", "stop":
		return ActionStop, true
	case "s", "n", "skip", "next":
		return ActionSkip, true
	case "q", "quit", "exit":
		return ActionQuit, true
	default:
		return 0, false
	}
}

type lineControls struct {
	actions chan Action
}

// NewLineControls reads actions from r, one per line, until EOF or ctx ends.
func NewLineControls(ctx context.Context, r io.Reader) Controls {
	c := &lineControls{actions: make(chan Action)}
	go func() {
		defer close(c.actions)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			action, ok := ParseAction(scanner.Text())
			if !ok {
				continue
			}
			select {
			case c.actions <- action:
			case <-ctx.Done():
				return
			}
		}
	}()
	return c
}

func (c *lineControls) Actions() <-chan Action { return c.actions }

// Prompter is implemented by controls that only produce an action when the
// runner asks for one.
type Prompter interface {
	Prompt()
}

type scriptedControls struct {
	mu      sync.Mutex
	pending []Action
	actions chan Action
	closed  bool
}

// NewScriptedControls answers each prompt with the next action and closes
// once the script is exhausted. Nothing is delivered while listening, so a
// scripted answer always ends on its own.
func NewScriptedControls(actions ...Action) Controls {
	return &scriptedControls{pending: actions, actions: make(chan Action, len(actions)+1)}
}

func (c *scriptedControls) Actions() <-chan Action { return c.actions }

func (c *scriptedControls) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if len(c.pending) == 0 {
		c.closed = true
		close(c.actions)
		return
	}
	c.actions <- c.pending[0]
	c.pending = c.pending[1:]
}
