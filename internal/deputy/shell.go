package deputy

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/procman-deputy/internal/bus"
	"github.com/edirooss/procman-deputy/internal/bus/redisbus"
	"github.com/edirooss/procman-deputy/internal/debugsrv"
	"github.com/edirooss/procman-deputy/internal/eventloop"
	"github.com/edirooss/procman-deputy/internal/publisher"
	"github.com/edirooss/procman-deputy/internal/resourceprobe"
	"github.com/edirooss/procman-deputy/internal/signalbridge"
	"github.com/edirooss/procman-deputy/internal/state"
	"github.com/edirooss/procman-deputy/internal/supervisor"
)

// Shell is the assembled, runnable deputy: every component wired
// together per spec.md §4.8.
type Shell struct {
	log     *zap.Logger
	logFile *lineWriter
	bus     bus.Bus
	loop    *eventloop.Loop
	debug   *debugsrv.Server
	cfg     Config
}

// New builds a Shell from cfg: dials the bus, resolves hostname, builds
// the logger (optionally redirected to a log file), constructs the
// Command set, installs the Signal Bridge, subscribes to the orders
// channel, and wires every component. Returns a Fatal-class error (spec.md
// §7) for anything that must abort before the loop starts.
func New(cfg Config) (*Shell, error) {
	log, logFile, err := buildLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("deputy: build logger: %w", err)
	}

	host, err := ResolveHostname(cfg)
	if err != nil {
		return nil, fmt.Errorf("deputy: resolve hostname: %w", err)
	}

	b, err := redisbus.New(cfg.LCMURL, log)
	if err != nil {
		return nil, fmt.Errorf("deputy: bus dial failed: %w", err)
	}

	ordersCh, err := b.Subscribe(context.Background(), bus.OrdersChannel)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("deputy: subscribe orders failed: %w", err)
	}

	// The verbose stderr mirror follows -l/--log: once the log is
	// redirected to a file, the mirrored copy goes there too rather than
	// to the terminal (spec.md §6 "redirect stdout/stderr to PATH").
	var verboseOut io.Writer = os.Stderr
	if logFile != nil {
		verboseOut = logFile
	}

	st := state.New(host)
	sup := supervisor.New(log, supervisor.DefaultChunkSize)
	pub := publisher.New(log, b, host, cfg.Verbose, verboseOut)
	bridge := signalbridge.New()
	probe := resourceprobe.New()

	loop := eventloop.New(log, st, sup, pub, bridge, ordersCh, probe)
	debug := debugsrv.New(log, loop)

	return &Shell{
		log:     log,
		logFile: logFile,
		bus:     b,
		loop:    loop,
		debug:   debug,
		cfg:     cfg,
	}, nil
}

// Run starts the debug HTTP surface (if enabled) and blocks in the event
// loop until the loop observes a termination signal (or ctx is cancelled),
// then tears everything down per spec.md §4.8's shutdown sequence.
func (s *Shell) Run(ctx context.Context) error {
	if s.cfg.DebugAddr != "" && s.cfg.DebugAddr != "0" {
		go func() {
			if err := s.debug.Start(ctx, s.cfg.DebugAddr); err != nil {
				s.log.Warn("debug http surface exited", zap.Error(err))
			}
		}()
	}

	err := s.loop.Run(ctx)

	if closeErr := s.bus.Close(); closeErr != nil {
		s.log.Warn("bus close failed", zap.Error(closeErr))
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
	return err
}

func buildLogger(cfg Config) (*zap.Logger, *lineWriter, error) {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true

	if cfg.LogPath == "" {
		log, err := logConfig.Build()
		if err != nil {
			return nil, nil, err
		}
		return log.Named("deputy"), nil, nil
	}

	lw, err := openLineBufferedLog(cfg.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	encoder := zapcore.NewConsoleEncoder(logConfig.EncoderConfig)
	core := zapcore.NewCore(encoder, zapcore.AddSync(lw), zap.NewAtomicLevelAt(zapcore.InfoLevel))
	log := zap.New(core).Named("deputy")
	return log, lw, nil
}
