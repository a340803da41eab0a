package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telephony/internal/config"
	"telephony/internal/tapi"
	"telephony/internal/transport"
)

// session is a bridge context with its own bus connection and loop
// goroutine, used by commands that bypass the daemon.
type session struct {
	cfg     *config.Config
	conn    transport.Conn
	bridge  *tapi.Context
	cancel  context.CancelFunc
	loopErr chan error
}

func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	conn, err := dialBus(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to %s bus: %w", cfg.Bus.Type, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		cfg:     cfg,
		conn:    conn,
		bridge:  tapi.New(conn, tapi.OptionsFromConfig(cfg, logger)),
		cancel:  cancel,
		loopErr: make(chan error, 1),
	}
	go func() {
		s.loopErr <- s.bridge.Run(runCtx)
	}()
	return s, nil
}

// query runs one operation and waits for its result.
func (s *session) query(ctx context.Context, kind tapi.Kind, slot int, operatorID string) (tapi.AsyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout())
	defer cancel()
	return s.bridge.Await(ctx, func(c *tapi.Context, cb tapi.Callback) error {
		return c.StartOperation(kind, slot, operatorID, cb)
	})
}

// wait blocks until ctx ends or the loop stops on its own.
func (s *session) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.loopErr:
		s.loopErr <- err
		return err
	}
}

func (s *session) close() error {
	s.cancel()
	var loopErr error
	select {
	case loopErr = <-s.loopErr:
	case <-time.After(5 * time.Second):
		loopErr = errors.New("bridge loop did not stop")
	}
	return errors.Join(loopErr, s.conn.Close())
}
