package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-interview/internal/backend"
	"github.com/loqalabs/loqa-interview/internal/bus"
	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/devices"
	"github.com/loqalabs/loqa-interview/internal/eventstore"
	"github.com/loqalabs/loqa-interview/internal/interview"
	"github.com/loqalabs/loqa-interview/internal/natsserver"
	"github.com/loqalabs/loqa-interview/internal/runtime"
	"github.com/loqalabs/loqa-interview/internal/stt"
	"github.com/loqalabs/loqa-interview/internal/tts"
)

func runInterview(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	rt := runtime.New(cfg, logger)
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Shutdown(shutdownCtx); err != nil {
			logger.Error("runtime shutdown error", slog.String("error", err.Error()))
		}
	}()

	var busClient *bus.Client
	if cfg.UsesBus() {
		embedded, err := natsserver.Start(cfg.Bus, logger)
		if err != nil {
			return err
		}
		defer embedded.Shutdown()

		busCfg := cfg.Bus
		if embedded != nil {
			busCfg.Servers = []string{embedded.ClientURL()}
		}
		busClient, err = bus.Connect(ctx, busCfg, logger)
		if err != nil {
			return err
		}
		defer busClient.Close()
		rt.AddCheck("bus", func() error {
			if !busClient.Healthy() {
				return errors.New("not connected")
			}
			return nil
		})
	}

	enumerator, err := devices.New(cfg.Devices)
	if err != nil {
		return err
	}
	device := selectDevice(ctx, enumerator, cfg.Devices.Selected, logger)

	synth, err := tts.NewSynthesizer(cfg.TTS, busClient)
	if err != nil {
		return err
	}
	player, err := tts.NewPlayer(cfg.TTS.Player)
	if err != nil {
		return err
	}
	speaker := tts.NewSpeaker(synth, player, cfg.TTS.Voice, millis(cfg.TTS.TimeoutMS), logger)

	listener, err := stt.NewListenerFromConfig(cfg.STT, busClient, device, logger)
	if err != nil {
		return err
	}

	client, err := backend.New(cfg.Backend, logger)
	if err != nil {
		return err
	}

	store, err := eventstore.Open(ctx, cfg.EventStore, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics, err := interview.NewMetrics()
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	tracker := interview.NewTracker(sessionID)
	rt.SetStatus(func() any { return tracker.Snapshot() })

	runner, err := interview.NewRunner(interview.Deps{
		Backend:  client,
		Speaker:  speaker,
		Listener: listener,
		Devices:  enumerator,
		Controls: interview.NewLineControls(ctx, os.Stdin),
		Status:   interview.Multi(interview.NewTerminalStatus(os.Stdout), interview.NewLogStatus(logger), tracker),
		Events:   store,
		Metrics:  metrics,
		Out:      os.Stdout,
	}, interview.Options{
		SessionID:      sessionID,
		IntroQuestions: cfg.Interview.IntroQuestions,
		StartupDelay:   millis(cfg.Backend.StartupDelayMS),
		AdvanceDelay:   millis(cfg.Interview.AdvanceDelayMS),
		AutoListen:     cfg.Interview.AutoListen,
		MaxAttempts:    cfg.Interview.MaxAttempts,
		ResultsDir:     cfg.Results.Directory,
	}, logger)
	if err != nil {
		return err
	}

	rt.SetReady(true)
	logger.Info("interview starting",
		slog.String("session_id", sessionID),
		slog.String("backend", client.BaseURL()),
		slog.String("device", cmp.Or(device, "default")),
	)
	_, err = runner.Run(ctx)
	switch {
	case errors.Is(err, interview.ErrQuit), errors.Is(err, context.Canceled):
		return nil
	case err != nil:
		return fmt.Errorf("interview: %w", err)
	}
	return nil
}

func selectDevice(ctx context.Context, enumerator devices.Enumerator, selected string, logger *slog.Logger) string {
	found, err := enumerator.Inputs(ctx)
	if err != nil {
		logger.Warn("error checking devices", slog.String("error", err.Error()))
		return selected
	}
	if len(found) == 0 {
		logger.Warn(devices.Diagnose(found))
	}
	device, ok := devices.Select(found, selected)
	if !ok {
		return selected
	}
	if selected != "" && device.ID != selected && device.Label != selected {
		logger.Warn("selected microphone not connected, using first input", slog.String("selected", selected), slog.String("device", device.ID))
	}
	return device.ID
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
