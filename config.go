package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/nPaBwaYT/deslink/cripta"
	"github.com/nPaBwaYT/deslink/transport"
)

const (
	defaultPort = 12345
	keyEnv      = "DESLINK_KEY"
)

// Config collects the flags shared by every subcommand.
type Config struct {
	Command string

	Host    string
	Port    int
	Timeout time.Duration

	Key        string
	KeyHex     string
	Passphrase string
	Salt       string
	Iterations int

	Debug         bool
	Parallel      int
	StrictPadding bool
	MaxFrame      uint

	// Input and Output are the file paths of encrypt/decrypt.
	Input  string
	Output string
}

func isPeerCommand(command string) bool {
	return command == "send" || command == "receive"
}

func parseConfig(command string, args []string, stderr io.Writer) (*Config, error) {
	cfg := &Config{Command: command}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	if isPeerCommand(command) {
		defaultHost := "localhost"
		if command == "receive" {
			defaultHost = "0.0.0.0"
		}
		fs.StringVar(&cfg.Host, "host", defaultHost, "host to connect to (send) or listen on (receive)")
		fs.IntVar(&cfg.Port, "port", defaultPort, "TCP port")
		fs.DurationVar(&cfg.Timeout, "timeout", 0, "dial/accept timeout, 0 waits forever")
		fs.UintVar(&cfg.MaxFrame, "max-frame", transport.DefaultMaxFrameSize, "largest accepted ciphertext frame in bytes, 0 for no limit")
	}

	fs.StringVar(&cfg.Key, "key", "", "8-character key (falls back to $"+keyEnv+")")
	fs.StringVar(&cfg.KeyHex, "key-hex", "", "key as 16 hex digits")
	fs.StringVar(&cfg.Passphrase, "passphrase", "", "derive the key from a passphrase with PBKDF2-SHA256")
	fs.StringVar(&cfg.Salt, "salt", "deslink", "salt for -passphrase")
	fs.IntVar(&cfg.Iterations, "iterations", cripta.DefaultKDFIterations, "PBKDF2 iterations for -passphrase")
	fs.BoolVar(&cfg.Debug, "debug", false, "log every cipher stage")
	fs.IntVar(&cfg.Parallel, "parallel", 1, "number of blocks processed concurrently")
	fs.BoolVar(&cfg.StrictPadding, "strict-padding", false, "reject messages whose padding does not verify")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !isPeerCommand(command) {
		if fs.NArg() != 2 {
			return nil, fmt.Errorf("%s needs an input and an output file", command)
		}
		cfg.Input, cfg.Output = fs.Arg(0), fs.Arg(1)
	} else if fs.NArg() != 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if cfg.Key == "" && cfg.KeyHex == "" && cfg.Passphrase == "" {
		cfg.Key = os.Getenv(keyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	sources := 0
	for _, s := range []string{c.Key, c.KeyHex, c.Passphrase} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return errors.New("use only one of -key, -key-hex and -passphrase")
	}

	if isPeerCommand(c.Command) {
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("invalid port %d", c.Port)
		}
		if c.Timeout < 0 {
			return fmt.Errorf("invalid timeout %s", c.Timeout)
		}
		if uint64(c.MaxFrame) > uint64(^uint32(0)) {
			return fmt.Errorf("max-frame %d does not fit in a frame header", c.MaxFrame)
		}
	}

	if c.Parallel < 1 {
		return fmt.Errorf("invalid parallelism %d", c.Parallel)
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// hasKey reports whether a key was supplied through flags or the environment.
func (c *Config) hasKey() bool {
	return c.Key != "" || c.KeyHex != "" || c.Passphrase != ""
}

func (c *Config) resolveKey() ([]uint8, error) {
	switch {
	case c.KeyHex != "":
		return cripta.ParseHexKey(c.KeyHex)
	case c.Passphrase != "":
		return cripta.DeriveKey(c.Passphrase, []uint8(c.Salt), c.Iterations), nil
	case c.Key != "":
		return cripta.ParseKey(c.Key)
	}
	return nil, fmt.Errorf("%w: no key given", cripta.ErrInvalidKey)
}

func (c *Config) cipherOptions(logger *slog.Logger) []cripta.Option {
	opts := []cripta.Option{cripta.WithParallelism(c.Parallel)}
	if c.StrictPadding {
		opts = append(opts, cripta.WithStrictPadding())
	}
	if c.Debug {
		opts = append(opts, cripta.WithTrace(func(stage string, bits cripta.Bits) {
			logger.Debug("des", "stage", stage, "bits", bits.String())
		}))
	}
	return opts
}

func (c *Config) peerOptions(logger *slog.Logger) []transport.Option {
	return []transport.Option{
		transport.WithLogger(logger),
		transport.WithMaxFrameSize(uint32(c.MaxFrame)),
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
