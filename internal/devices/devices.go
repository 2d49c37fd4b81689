// Package devices lists audio input devices for microphone selection and
// no-speech diagnostics.
package devices

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/mattn/go-shellwords"
)

// Device is an audio input.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Enumerator lists the audio inputs currently available.
type Enumerator interface {
	Inputs(ctx context.Context) ([]Device, error)
}

type procEnumerator struct {
	path string
}

// NewProcEnumerator reads capture devices from an ALSA pcm listing such as
// /proc/asound/pcm.
func NewProcEnumerator(path string) Enumerator {
	return &procEnumerator{path: path}
}

func (p *procEnumerator) Inputs(_ context.Context) ([]Device, error) {
	f, err := os.Open(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", p.path, err)
	}
	defer f.Close()
	return ParseProc(f)
}

// ParseProc parses lines like
//
//	00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
//
// keeping only entries with a capture stream.
func ParseProc(r io.Reader) ([]Device, error) {
	var out []Device
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 3 {
			continue
		}
		capture := false
		for _, f := range fields[3:] {
			if strings.HasPrefix(strings.TrimSpace(f), "capture") {
				capture = true
			}
		}
		if !capture {
			continue
		}
		card, dev, ok := strings.Cut(strings.TrimSpace(fields[0]), "-")
		if !ok {
			continue
		}
		cardN, err1 := strconv.Atoi(card)
		devN, err2 := strconv.Atoi(dev)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, Device{
			ID:    fmt.Sprintf("hw:%d,%d", cardN, devN),
			Label: strings.TrimSpace(fields[1]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return withLabels(out), nil
}

type execEnumerator struct {
	args []string
}

// NewExecEnumerator runs command and reads one "id<TAB>label" per line.
func NewExecEnumerator(command string) (Enumerator, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse devices command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("devices command empty")
	}
	return &execEnumerator{args: args}, nil
}

func (e *execEnumerator) Inputs(ctx context.Context) ([]Device, error) {
	cmd := exec.CommandContext(ctx, e.args[0], e.args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("devices command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var devices []Device
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, label, _ := strings.Cut(line, "\t")
		devices = append(devices, Device{ID: strings.TrimSpace(id), Label: strings.TrimSpace(label)})
	}
	return withLabels(devices), nil
}

type staticEnumerator struct {
	devices []Device
}

func NewStaticEnumerator(devices []Device) Enumerator {
	return &staticEnumerator{devices: withLabels(devices)}
}

func (s *staticEnumerator) Inputs(context.Context) ([]Device, error) {
	return append([]Device(nil), s.devices...), nil
}

// New builds the enumerator selected by cfg.Mode.
func New(cfg config.DevicesConfig) (Enumerator, error) {
	switch cfg.Mode {
	case "", "proc":
		return NewProcEnumerator(cfg.ProcPath), nil
	case "exec":
		return NewExecEnumerator(cfg.Command)
	case "static":
		devices := make([]Device, 0, len(cfg.Static))
		for _, d := range cfg.Static {
			devices = append(devices, Device{ID: d.ID, Label: d.Label})
		}
		return NewStaticEnumerator(devices), nil
	default:
		return nil, fmt.Errorf("unsupported devices mode %q", cfg.Mode)
	}
}

// withLabels names unlabeled devices "Microphone N", N counting from 1.
func withLabels(devices []Device) []Device {
	for i := range devices {
		if devices[i].Label == "" {
			devices[i].Label = "Microphone " + strconv.Itoa(i+1)
		}
	}
	return devices
}

// DefaultDevice stands for the system default input. Its empty ID lets the
// capture command pick its own default route.
var DefaultDevice = Device{Label: "Default Microphone"}

// Select returns the device matching id by ID or label. An empty id selects
// DefaultDevice. An id that is not connected falls back to the first device,
// and ok is false when there is nothing to fall back to.
func Select(devices []Device, id string) (Device, bool) {
	if id == "" {
		return DefaultDevice, true
	}
	if len(devices) == 0 {
		return Device{}, false
	}
	for _, d := range devices {
		if d.ID == id || d.Label == id {
			return d, true
		}
	}
	return devices[0], true
}

// Diagnose explains the microphone situation after an answer without speech.
func Diagnose(devices []Device) string {
	if len(devices) == 0 {
		return "No microphones detected. Please check your device settings."
	}
	return fmt.Sprintf("Detected %d microphone(s). Check microphone permissions.", len(devices))
}
