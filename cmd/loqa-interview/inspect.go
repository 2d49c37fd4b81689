package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/loqalabs/loqa-interview/internal/backend"
	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/devices"
	"github.com/loqalabs/loqa-interview/internal/eventstore"
	"github.com/loqalabs/loqa-interview/internal/report"
)

func listQuestions(ctx context.Context, cfg config.Config, logger *slog.Logger, w io.Writer) error {
	client, err := backend.New(cfg.Backend, logger)
	if err != nil {
		return err
	}
	questions, err := client.Questions(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tQUESTION")
	for _, q := range questions {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", q.ID, q.Category, q.Text)
	}
	return tw.Flush()
}

func listDevices(ctx context.Context, cfg config.Config, w io.Writer) error {
	enumerator, err := devices.New(cfg.Devices)
	if err != nil {
		return err
	}
	found, err := enumerator.Inputs(ctx)
	if err != nil {
		return err
	}
	selected, ok := devices.Select(found, cfg.Devices.Selected)
	if ok && selected.ID == "" {
		fmt.Fprintf(w, "* default\t%s\n", selected.Label)
	}
	for _, d := range found {
		marker := " "
		if ok && d.ID == selected.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\n", marker, d.ID, d.Label)
	}
	fmt.Fprintln(w, devices.Diagnose(found))
	return nil
}

func listSessions(ctx context.Context, cfg config.Config, logger *slog.Logger, w io.Writer, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	store, err := eventstore.Open(ctx, cfg.EventStore, discardLogger())
	if err != nil {
		return err
	}
	defer store.Close()
	if store.Enabled() {
		sessions, err := store.ListSessions(ctx, limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "SESSION\tSTARTED\tQUESTIONS\tCOMPLETED\tAVERAGE")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%.1f\n", s.ID, s.StartedAt.Local().Format(time.DateTime), s.QuestionCount, s.Completed, s.AverageScore)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	summaries, err := report.ListSummaries(cfg.Results.Directory)
	if err != nil {
		logger.Warn("failed to read results", slog.String("dir", cfg.Results.Directory), slog.String("error", err.Error()))
		return nil
	}
	if len(summaries) == 0 {
		return nil
	}
	fmt.Fprintf(tw, "\nRESULTS (%s)\tSTARTED\tANSWERED\tOVERALL\n", cfg.Results.Directory)
	for i, s := range summaries {
		if i >= limit {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%.1f\n", s.SessionID, s.StartedAt.Local().Format(time.DateTime), s.Scored(), s.Total, s.Averages.Overall)
	}
	return tw.Flush()
}
