package milter

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/d--j/go-milter"
	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/filter"
	"go.uber.org/zap"
)

// Server is the spamscan milter server
type Server struct {
	config    *config.Config
	scanner   *filter.Scanner
	milterSrv *milter.Server
	logger    *zap.Logger
}

// NewServer creates a milter server that runs every message through scanner
func NewServer(cfg *config.Config, scanner *filter.Scanner, logger *zap.Logger) (*Server, error) {
	if !cfg.Milter.Enabled {
		return nil, fmt.Errorf("milter is not enabled in configuration")
	}
	if scanner == nil {
		return nil, fmt.Errorf("milter needs a scanner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var milterOpts []milter.Option

	// Events the MTA does not need to send
	var skipProtocols milter.OptProtocol
	if cfg.Milter.SkipConnect {
		skipProtocols |= milter.OptNoConnect
	}
	if cfg.Milter.SkipHelo {
		skipProtocols |= milter.OptNoHelo
	}
	if skipProtocols != 0 {
		milterOpts = append(milterOpts, milter.WithProtocol(skipProtocols))
	}

	if cfg.Milter.AddSpamHeaders {
		milterOpts = append(milterOpts, milter.WithAction(milter.OptAddHeader))
	}

	if cfg.Milter.ReadTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithReadTimeout(
			time.Duration(cfg.Milter.ReadTimeoutMs)*time.Millisecond))
	}
	if cfg.Milter.WriteTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithWriteTimeout(
			time.Duration(cfg.Milter.WriteTimeoutMs)*time.Millisecond))
	}

	milterOpts = append(milterOpts, milter.WithMilter(func() milter.Milter {
		return NewHandler(cfg, scanner, logger)
	}))

	return &Server{
		config:    cfg,
		scanner:   scanner,
		milterSrv: milter.NewServer(milterOpts...),
		logger:    logger,
	}, nil
}

// Serve accepts connections until ctx is cancelled or the listener fails
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.milterSrv.Serve(listener)
	}()
	s.logger.Info("milter listening", zap.String("address", listener.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(s.config.Milter.GracefulShutdownTimeout)*time.Millisecond,
		)
		defer cancel()

		if err := s.milterSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown milter server: %w", err)
		}
		return ctx.Err()

	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("milter server error: %w", err)
		}
		return nil
	}
}

// Close closes the milter server
func (s *Server) Close() error {
	return s.milterSrv.Close()
}

// Stats returns server statistics
func (s *Server) Stats() ServerStats {
	return ServerStats{
		MilterCount: s.milterSrv.MilterCount(),
		Scans:       s.scanner.Stats().Total,
	}
}

// ServerStats contains server statistics
type ServerStats struct {
	MilterCount uint64 // milter instances created
	Scans       int64
}
