package httpwire

import (
	"time"

	"go.uber.org/zap"

	"github.com/mel2oo/go-httpwire/tcpdial"
	"github.com/mel2oo/go-httpwire/trace"
	"github.com/mel2oo/go-httpwire/wire"
)

type Options struct {
	// Bound on a single protocol line.
	// Default wire.MaxLine.
	MaxLine int

	// Reactor to multiplex pending connects through. Without one, connects
	// block the calling goroutine.
	Reactor tcpdial.Reactor

	// Resolver producing the candidate address list.
	// Default: the system resolver.
	Resolver tcpdial.Resolver

	// Bound on each candidate's pending connect. Zero means no bound beyond
	// the caller's context.
	ConnectTimeout time.Duration

	// Collector to record request/response exchanges into. Nil disables
	// tracing.
	Collector *trace.Collector

	Logger *zap.Logger
}

func NewOptions() Options {
	return Options{
		MaxLine: wire.MaxLine,
		Logger:  zap.NewNop(),
	}
}

type Option func(*Options)

func WithMaxLine(n int) Option {
	return func(o *Options) {
		o.MaxLine = n
	}
}

func WithReactor(r tcpdial.Reactor) Option {
	return func(o *Options) {
		o.Reactor = r
	}
}

func WithResolver(r tcpdial.Resolver) Option {
	return func(o *Options) {
		o.Resolver = r
	}
}

func WithConnectTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = t
	}
}

func WithCollector(c *trace.Collector) Option {
	return func(o *Options) {
		o.Collector = c
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}
