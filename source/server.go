package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTicks           = 5
	DefaultTickInterval    = 100 * time.Millisecond
	DefaultDisconnectRatio = 0.1
)

// Binary is what a simulated download produces.
type Binary struct {
	From string
}

func (b Binary) String() string { return "Binary[source='" + b.From + "']" }

// DisconnectedError reports a simulated server dropping the connection mid-download.
type DisconnectedError struct {
	Server string
	Tick   int
}

func (e *DisconnectedError) Error() string {
	return fmt.Sprintf("server %q: abruptly disconnected", e.Server)
}

// Server simulates a download that takes a fixed number of ticks and may
// disconnect on any of them.
type Server struct {
	name            string
	ticks           int
	interval        time.Duration
	disconnectRatio float64
	rand            func() float64
	logger          *zap.Logger
}

type ServerOption func(*Server)

// WithTicks sets how many ticks a download takes. Values below one are ignored.
func WithTicks(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.ticks = n
		}
	}
}

// WithTickInterval sets the delay between ticks. Zero makes ticks immediate.
func WithTickInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d >= 0 {
			s.interval = d
		}
	}
}

// WithDisconnectRatio sets the per-tick disconnect probability, clamped to [0, 1].
func WithDisconnectRatio(p float64) ServerOption {
	return func(s *Server) {
		switch {
		case p < 0:
			p = 0
		case p > 1:
			p = 1
		}
		s.disconnectRatio = p
	}
}

// WithRand replaces the random source. fn must return values in [0, 1) and be
// safe for concurrent use if the server is shared between races.
func WithRand(fn func() float64) ServerOption {
	return func(s *Server) {
		if fn != nil {
			s.rand = fn
		}
	}
}

func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewServer(name string, opts ...ServerOption) *Server {
	s := &Server{
		name:            name,
		ticks:           DefaultTicks,
		interval:        DefaultTickInterval,
		disconnectRatio: DefaultDisconnectRatio,
		rand:            rand.Float64,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With(zap.String("server", name))
	return s
}

func (s *Server) Name() string { return s.name }

// Fetch runs one simulated download.
func (s *Server) Fetch(ctx context.Context) (Binary, error) {
	s.logger.Debug("download started", zap.Time("at", time.Now()))

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < s.ticks; i++ {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return Binary{}, ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return Binary{}, err
		}

		s.logger.Debug("download tick", zap.Int("tick", i+1), zap.Time("at", time.Now()))
		if s.rand() < s.disconnectRatio {
			s.logger.Debug("download disconnected", zap.Int("tick", i+1))
			return Binary{}, &DisconnectedError{Server: s.name, Tick: i + 1}
		}
	}
	return Binary{From: s.name}, nil
}
