package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"telephony/internal/tapi"
)

const shellHelp = `Commands:
  listen-network <slot> <event>           watch radio-state, network-state, cellinfo, signal-strength or nitz
  unlisten-network <watch_id>             remove a watch
  select-auto <slot>                      automatic operator selection
  select-manual <slot> <operator-id>      register with an operator path from scan
  scan <slot>                             list visible operators
  serving-cell <slot>                     show the serving cell
  neighbouring-cells <slot>               list neighbouring cells
  registration <slot>                     show registration info
  help                                    show this text
  q                                       quit`

var shellOperations = map[string]tapi.Kind{
	"select-auto":        tapi.KindSelectAuto,
	"select-manual":      tapi.KindSelectManual,
	"scan":               tapi.KindScan,
	"serving-cell":       tapi.KindServingCellInfo,
	"neighbouring-cells": tapi.KindNeighbouringCellInfo,
	"registration":       tapi.KindRegistrationInfo,
}

func newShellCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session over a private bus connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(commandCtx(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(runCtx, ctx.configValue(), ctx.logger())
			if err != nil {
				return err
			}
			defer s.close()

			sh := &shell{
				bridge: s.bridge,
				out:    &lockedWriter{w: cmd.OutOrStdout()},
			}
			return sh.run(runCtx, cmd.InOrStdin())
		},
	}
}

type shell struct {
	bridge *tapi.Context
	out    *lockedWriter
}

var errQuit = errors.New("quit")

// run reads commands until q, end of input, or ctx ends. Lines are read on
// their own goroutine so a blocked read never holds up loop shutdown.
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	sh.out.println(`Type "help" for commands.`)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sh.bridge.Done():
			return errors.New("bridge loop stopped")
		case err := <-readErr:
			return err
		case line := <-lines:
			err := sh.execute(ctx, strings.Fields(line))
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				sh.out.println("error: " + err.Error())
			}
		}
	}
}

func (sh *shell) execute(ctx context.Context, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "q", "quit", "exit":
		return errQuit
	case "help":
		sh.out.println(shellHelp)
		return nil
	case "listen-network":
		if len(args) != 2 {
			return errors.New("usage: listen-network <slot> <event>")
		}
		slot, err := parseSlot(args[0])
		if err != nil {
			return err
		}
		kind, err := tapi.ParseEventKind(args[1])
		if err != nil {
			return err
		}
		var id tapi.WatchID
		err = sh.bridge.Exec(ctx, func(c *tapi.Context) error {
			var err error
			id, err = c.Register(slot, kind, sh.print)
			return err
		})
		if err != nil {
			return err
		}
		sh.out.println(fmt.Sprintf("watch %d: %s on slot %d", id, kind, slot))
		return nil
	case "unlisten-network":
		if len(args) != 1 {
			return errors.New("usage: unlisten-network <watch_id>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid watch id %q", args[0])
		}
		if err := sh.bridge.Exec(ctx, func(c *tapi.Context) error { return c.Unregister(tapi.WatchID(id)) }); err != nil {
			return err
		}
		sh.out.println(fmt.Sprintf("watch %d removed", id))
		return nil
	}

	kind, ok := shellOperations[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	want := 1
	if kind == tapi.KindSelectManual {
		want = 2
	}
	if len(args) != want {
		return fmt.Errorf("%s expects %d argument(s)", name, want)
	}
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	operatorID := ""
	if kind == tapi.KindSelectManual {
		operatorID = args[1]
	}
	// The result arrives on the loop and is printed by the callback.
	return sh.bridge.Exec(ctx, func(c *tapi.Context) error {
		return c.StartOperation(kind, slot, operatorID, sh.printFull)
	})
}

func (sh *shell) print(ar *tapi.AsyncResult) {
	sh.out.println(summarizeResult(ar))
}

func (sh *shell) printFull(ar *tapi.AsyncResult) {
	var b strings.Builder
	renderResult(&b, ar)
	sh.out.println(strings.TrimRight(b.String(), "\n"))
}

func parseSlot(value string) (int, error) {
	slot, err := strconv.Atoi(value)
	if err != nil || slot < 0 {
		return 0, fmt.Errorf("invalid slot %q", value)
	}
	return slot, nil
}
