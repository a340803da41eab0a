package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"telephony/internal/api"
	"telephony/internal/daemon"
	"telephony/internal/logging"
	"telephony/internal/tapi"
)

const requestTimeout = 10 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o660); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the server is closed.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// Close stops the server, drops open client connections, and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, requestTimeout)
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	ctx, cancel := s.requestContext()
	defer cancel()
	status, err := s.daemon.StatusPayload(ctx)
	if err != nil {
		return err
	}
	*resp = status
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	ctx, cancel := s.requestContext()
	defer cancel()
	page, err := s.daemon.EventsPayload(ctx, req.After, req.Limit)
	if err != nil {
		return err
	}
	*resp = page
	return nil
}

func (s *service) Watch(req WatchRequest, resp *WatchResponse) error {
	ctx, cancel := s.requestContext()
	defer cancel()
	info, err := s.daemon.Watch(ctx, req.Slot, req.Event)
	if err != nil {
		return err
	}
	resp.Watch = api.FromWatch(info)
	s.logger.Info("watch registered via IPC",
		logging.String(logging.FieldEventType, "watch_register"),
		logging.Int(logging.FieldWatchID, int(info.ID)),
		logging.Int(logging.FieldSlot, info.Slot),
		logging.String(logging.FieldEvent, info.Kind.String()),
	)
	return nil
}

func (s *service) Unwatch(req UnwatchRequest, resp *UnwatchResponse) error {
	ctx, cancel := s.requestContext()
	defer cancel()
	if err := s.daemon.Unwatch(ctx, tapi.WatchID(req.ID)); err != nil {
		return err
	}
	resp.Removed = true
	s.logger.Info("watch removed via IPC",
		logging.String(logging.FieldEventType, "watch_unregister"),
		logging.Int(logging.FieldWatchID, req.ID),
	)
	return nil
}

func (s *service) Refresh(_ RefreshRequest, resp *RefreshResponse) error {
	ctx, cancel := s.requestContext()
	defer cancel()
	if err := s.daemon.Refresh(ctx); err != nil {
		return err
	}
	resp.Refreshed = true
	return nil
}

func (s *service) Query(req QueryRequest, resp *QueryResponse) error {
	entry, err := s.daemon.Query(s.ctx, req.Slot, req.Operation, req.OperatorID)
	if err != nil {
		return err
	}
	resp.Event = api.FromEntry(entry)
	return nil
}
