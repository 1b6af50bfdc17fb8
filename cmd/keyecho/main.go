// Command keyecho prints decoded key events for every chunk typed on the terminal.
//
// Ctrl+T pauses and resumes the echo listener, Ctrl+C or Ctrl+D quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/lixenwraith/rawkey/config"
	"github.com/lixenwraith/rawkey/input"
	"github.com/lixenwraith/rawkey/terminal"
)

var (
	configFlag   = flag.String("config", "", "Path to TOML config file")
	sourceFlag   = flag.String("source", "", "Byte source: stdin, tty (overrides config)")
	inactiveFlag = flag.Bool("inactive", false, "Start with the echo listener paused")
	beepFlag     = flag.Bool("beep", false, "Play a tone on Return")
)

// source is a ByteSource that can report read failures and be released
type source interface {
	terminal.ByteSource
	Err() error
	Close() error
}

func main() {
	// Panic Recovery: Ensure terminal is reset even if a handler crashes
	defer func() {
		if r := recover(); r != nil {
			terminal.EmergencyReset(os.Stdout)
			fmt.Fprintf(os.Stderr, "\r\n\x1b[31mKEYECHO CRASHED: %v\x1b[0m\r\n", r)
			fmt.Fprintf(os.Stderr, "Stack Trace:\r\n%s\r\n", debug.Stack())
			os.Exit(1)
		}
	}()

	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "keyecho: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *sourceFlag != "" {
		cfg.Source = *sourceFlag
	}
	if *inactiveFlag {
		cfg.StartActive = false
	}
	if *beepFlag {
		cfg.BeepOnReturn = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	src := newSource(cfg, logger)
	// Normal exit terminal cleanup
	defer src.Close()

	fb := newFeedback(cfg, logger)
	defer fb.close()

	out := newPrinter(os.Stdout)
	m := input.NewManager(src, input.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	var once sync.Once
	done := make(chan struct{})
	quit := func() {
		once.Do(func() { close(done) })
	}

	echo, err := m.Register(func(text string, ev input.KeyEvent) {
		out.event(text, ev)
		if ev.Return() {
			fb.play()
		}
	}, input.WithActive(cfg.StartActive))
	if err != nil {
		return fmt.Errorf("register echo: %w", err)
	}
	defer echo.Close()

	control, err := m.Register(func(text string, ev input.KeyEvent) {
		if !ev.Ctrl() {
			return
		}
		switch text {
		case "c", "d":
			quit()
		case "t":
			next := !echo.Active()
			if err := echo.SetActive(next); err != nil {
				logger.Error("echo_toggle_failed", slog.String("error", err.Error()))
				return
			}
			out.status(next)
		}
	})
	if err != nil {
		return fmt.Errorf("register control: %w", err)
	}
	defer control.Close()

	logger.Info("keyecho_started", slog.String("source", cfg.Source), slog.Bool("echo", cfg.StartActive))
	out.banner(cfg.StartActive)

	return wait(ctx, done, src)
}

// wait blocks until quit, a signal, or the source reader ends
func wait(ctx context.Context, done <-chan struct{}, src source) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := src.Err(); err != nil {
				return fmt.Errorf("input closed: %w", err)
			}
		}
	}
}

func newSource(cfg *config.Config, logger *slog.Logger) source {
	opt := terminal.WithSourceLogger(logger.With(slog.String("source", cfg.Source)))
	if cfg.Source == config.SourceTty {
		return terminal.NewTtySource(opt)
	}
	return terminal.NewStdinSource(opt)
}

// newLogger writes to cfg.LogFile; stdout belongs to the raw terminal
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.Level()})
	return slog.New(h), func() { f.Close() }, nil
}
