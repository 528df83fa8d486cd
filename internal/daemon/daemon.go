// Package daemon assembles the controller: store, lock logic, stream link
// and drivers, driven by one cooperative tick loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/keyfold/lockcore/internal/bridge"
	"github.com/keyfold/lockcore/internal/clock"
	"github.com/keyfold/lockcore/internal/config"
	"github.com/keyfold/lockcore/internal/framelink"
	"github.com/keyfold/lockcore/internal/hw/buzzer"
	"github.com/keyfold/lockcore/internal/hw/display"
	"github.com/keyfold/lockcore/internal/lock"
	"github.com/keyfold/lockcore/internal/logging"
	"github.com/keyfold/lockcore/internal/store"
)

// Service is the running daemon.
type Service struct {
	cfg config.Config
	log zerolog.Logger
}

func New(cfg config.Config) *Service {
	return &Service{cfg: cfg, log: logging.For("daemon")}
}

// Run blocks until SIGINT/SIGTERM or a fatal setup error.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.cfg.Validate(); err != nil {
		return err
	}

	in, out, closeStream, err := openStream(s.cfg.Device)
	if err != nil {
		return err
	}
	defer closeStream()

	creds := store.New(store.NewFileBackend(s.cfg.StorePath))
	if err := creds.Load(); err != nil {
		if !errors.Is(err, store.ErrCorrupt) {
			return fmt.Errorf("open store: %w", err)
		}
		// Load already reset and re-persisted a clean image.
		s.log.Warn().Str("path", s.cfg.StorePath).Msg("store unreadable, starting from defaults")
	}

	clk := clock.NewWall()
	panel := &panelLog{log: s.log}

	var cue lock.Buzzer
	var player *buzzer.Player
	if s.cfg.BuzzerEnabled {
		player = buzzer.New(buzzer.OutputFunc(func(on bool) {
			s.log.Debug().Bool("on", on).Msg("buzzer")
		}), clk)
		cue = player
	} else {
		cue = silentBuzzer{}
	}

	// The handler closes over logic, which is constructed after the link
	// because the link is the notifier.
	var logic *lock.Logic
	handler := func(cmd, cmdID string, args map[string]any) {
		logic.OnCommand(cmd, cmdID, args)
	}

	var notifier lock.Notifier
	var feed func(io.ByteReader)
	switch s.cfg.LinkMode {
	case config.LinkBinary:
		link := framelink.New(out, handler)
		notifier = link
		feed = link.Feed
	default:
		b := bridge.New(out, handler)
		notifier = bridge.LockNotifier{B: b}
		feed = b.Feed
	}

	logic = lock.NewWithTimings(creds, panel, cue, notifier, clk, lock.Timings{
		PinInputTimeoutMS: s.cfg.PinTimeoutMS,
		UnlockHoldMS:      s.cfg.UnlockHoldMS,
		LockoutDurationMS: s.cfg.LockoutMS,
		MaxFails:          s.cfg.MaxFails,
	})

	closers := []func(){closeStream}

	var input *hidInput
	var inputSrc *byteSource
	if s.cfg.InputDevice != "" {
		f, err := os.OpenFile(s.cfg.InputDevice, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("open input device: %w", err)
		}
		defer f.Close()
		closers = append(closers, func() { f.Close() })
		input = newHIDInput(clk, s.cfg, logic, s.log)
		inputSrc = newByteSource(ctx, f)
	}

	// Closing the devices on shutdown unblocks pump goroutines parked in
	// Read; double closes on *os.File are harmless.
	go func() {
		<-ctx.Done()
		for _, c := range closers {
			c()
		}
	}()

	src := newByteSource(ctx, in)
	ticker := time.NewTicker(time.Duration(s.cfg.TickPeriodMS) * time.Millisecond)
	defer ticker.Stop()

	s.log.Info().
		Str("device", s.cfg.Device).
		Str("link_mode", s.cfg.LinkMode).
		Str("store", s.cfg.StorePath).
		Msg("lockd running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			feed(src)
			if input != nil {
				input.pump(inputSrc)
				input.tick()
			}
			logic.Tick()
			if player != nil {
				player.Tick()
			}
		}
	}
}

// openStream resolves the device path to reader/writer ends. "-" means
// stdin/stdout, anything else is opened read-write (serial device or FIFO).
func openStream(device string) (io.Reader, io.Writer, func(), error) {
	if device == "-" {
		return os.Stdin, os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open stream device: %w", err)
	}
	return f, f, func() { f.Close() }, nil
}

// panelLog is the headless front panel: it keeps the text contract and
// logs changes instead of driving segments.
type panelLog struct {
	log   zerolog.Logger
	panel display.Text
}

func (p *panelLog) SetText(s string) {
	p.panel.SetText(s)
	p.log.Debug().Str("text", p.panel.Current()).Msg("display")
}

type silentBuzzer struct{}

func (silentBuzzer) PlaySuccess() {}
func (silentBuzzer) PlayFail()    {}

// byteSource pumps the stream into a buffered channel so the tick loop can
// read without blocking. ReadByte reports io.EOF when nothing is buffered;
// the parsers treat that as "come back later". The pump goroutine exits when
// the reader errors (Run closes the devices on shutdown for exactly that)
// or, if parked on a full channel, when the context ends.
type byteSource struct {
	ch chan byte
}

func newByteSource(ctx context.Context, r io.Reader) *byteSource {
	s := &byteSource{ch: make(chan byte, 1024)}
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := r.Read(buf)
			for _, b := range buf[:n] {
				select {
				case s.ch <- b:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return s
}

func (s *byteSource) ReadByte() (byte, error) {
	select {
	case b := <-s.ch:
		return b, nil
	default:
		return 0, io.EOF
	}
}

