package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"telephony/internal/tapi"
)

// lockedWriter serializes lines written from the loop and the command
// goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) println(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, line)
}

func newListenCommand(ctx *commandContext) *cobra.Command {
	var slot int

	cmd := &cobra.Command{
		Use:   "listen [event...]",
		Short: "Print network notifications for a slot until interrupted",
		Long: "Watch network notifications over a private bus session.\n\n" +
			"Events: radio-state, network-state, cellinfo, signal-strength, nitz. " +
			"All of them are watched when none are named.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseEventArgs(args)
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(commandCtx(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(runCtx, ctx.configValue(), ctx.logger())
			if err != nil {
				return err
			}
			defer s.close()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			emit := func(ar *tapi.AsyncResult) { out.println(summarizeResult(ar)) }
			for _, kind := range kinds {
				var id tapi.WatchID
				err := s.bridge.Exec(runCtx, func(c *tapi.Context) error {
					var err error
					id, err = c.Register(slot, kind, emit)
					return err
				})
				if err != nil {
					return fmt.Errorf("watch %s on slot %d: %w", kind, slot, err)
				}
				out.println(fmt.Sprintf("watching %s on slot %d (watch %d)", kind, slot, id))
			}
			return s.wait(runCtx)
		},
	}
	cmd.Flags().IntVarP(&slot, "slot", "s", 0, "Modem slot")
	return cmd
}

func parseEventArgs(args []string) ([]tapi.Kind, error) {
	if len(args) == 0 {
		return tapi.EventKinds(), nil
	}
	kinds := make([]tapi.Kind, 0, len(args))
	for _, arg := range args {
		kind, err := tapi.ParseEventKind(arg)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
