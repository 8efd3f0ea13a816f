package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/events"
)

func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "events",
		Aliases: []string{"watch"},
		Short:   "Follow daemon events",
		GroupID: gDiagnostics,
		Long: `Follow daemon events until interrupted.

With an API key you see your own diagnostics and key events. With the admin key you see everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for ev := range newClient().SubscribeEvents(ctx) {
				if jsonOutput {
					cmd.Printf("%s %s\n", ev.Name, compact(ev.Data))
					continue
				}
				printEvent(cmd, ev)
			}
			return nil
		},
	}
}

func printEvent(cmd *cobra.Command, ev events.Event) {
	switch ev.Name {
	case events.DiagnosticCompleted:
		p, err := events.DecodeAs[events.DiagnosticCompletedEvent](ev)
		if err != nil {
			logrus.WithError(err).Warn("failed to decode event")
			return
		}
		cmd.Printf("%s  %s  %s %s\n", eventTime(p.Ts), bold("%-13s", p.Kind), p.Chemistry, compact(p.Result))
	case events.KeyExhausted, events.UsageReset:
		p, err := events.DecodeAs[events.KeyEvent](ev)
		if err != nil {
			logrus.WithError(err).Warn("failed to decode event")
			return
		}
		msg := "usage reset"
		if ev.Name == events.KeyExhausted {
			msg = level("key exhausted", 2)
		}
		if p.Key != "" {
			cmd.Printf("%s  %s  key %s (%d/%d)\n", eventTime(p.Ts), msg, p.Key, p.Usage, p.Limit)
		} else {
			cmd.Printf("%s  %s\n", eventTime(p.Ts), msg)
		}
	default:
		cmd.Printf("%s  %s\n", ev.Name, compact(ev.Data))
	}
}

func eventTime(ts int64) string {
	if ts == 0 {
		return time.Now().Format(time.TimeOnly)
	}
	return time.Unix(ts, 0).Format(time.TimeOnly)
}
