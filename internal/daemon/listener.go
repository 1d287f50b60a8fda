package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"camrec/internal/logging"
)

// httpServer runs one HTTP listener bound to a configured address.
type httpServer struct {
	name         string
	bind         string
	handler      http.Handler
	writeTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// newHTTPServer builds a listener. writeTimeout of zero leaves writes unbounded,
// which long-lived WebSocket connections need.
func newHTTPServer(name, bind string, handler http.Handler, writeTimeout time.Duration, logger *slog.Logger) *httpServer {
	return &httpServer{
		name:         name,
		bind:         strings.TrimSpace(bind),
		handler:      handler,
		writeTimeout: writeTimeout,
		logger:       logging.NewComponentLogger(logger, name+"-server"),
	}
}

func (s *httpServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("%s listen: %w", s.name, err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, s.name+"_server_failed"),
				logging.String(logging.FieldErrorHint, "restart the daemon"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown(listener)
	}()

	s.logger.Info("server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *httpServer) stop() {
	if s == nil {
		return
	}
	s.shutdown(nil)
}

// shutdown closes the active listener; when only is set, it does so only if
// only is still the active listener.
func (s *httpServer) shutdown(only net.Listener) {
	s.mu.Lock()
	listener, server := s.listener, s.server
	if listener == nil || (only != nil && only != listener) {
		s.mu.Unlock()
		return
	}
	s.listener, s.server = nil, nil
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	_ = listener.Close()
}

func (s *httpServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
