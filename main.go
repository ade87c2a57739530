package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nPaBwaYT/deslink/cripta"
	"github.com/nPaBwaYT/deslink/transport"
)

/*
Wait for a peer and exchange DES-encrypted messages with it
deslink receive -port=12345

Connect to a waiting peer
deslink send -host=localhost -port=12345 -key="SECRET!!"

Log every permutation, round and subkey
deslink send -debug

Encrypt or decrypt a file (a fresh key is generated and printed when none is given)
deslink encrypt -parallel=4 input.txt output.enc
deslink decrypt -key-hex=0123456789ABCDEF input.enc output.txt

Keys: -key (8 characters), -key-hex (16 hex digits), -passphrase (PBKDF2-SHA256),
or the DESLINK_KEY environment variable. send and receive prompt when none is set.
*/

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1], os.Args[2:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case errors.Is(err, context.Canceled):
		fmt.Println("\nInterrupted by user.")
	default:
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  deslink receive [flags]              wait for a peer")
	fmt.Fprintln(w, "  deslink send [flags]                 connect to a waiting peer")
	fmt.Fprintln(w, "  deslink encrypt [flags] input output encrypt a file")
	fmt.Fprintln(w, "  deslink decrypt [flags] input output decrypt a file")
	fmt.Fprintln(w, "\nRun 'deslink <command> -h' for the flags of a command.")
}

func run(ctx context.Context, command string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	switch command {
	case "send", "receive", "encrypt", "decrypt":
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := parseConfig(command, args, stderr)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.Debug)

	if !isPeerCommand(command) {
		return runFile(ctx, cfg, logger, stdout)
	}

	in := newLineReader(ctx, stdin)
	return runPeer(ctx, cfg, logger, in, stdout)
}

func runPeer(ctx context.Context, cfg *Config, logger *slog.Logger, in *lineReader, stdout io.Writer) error {
	sender := cfg.Command == "send"

	role := "Receiver"
	if sender {
		role = "Sender"
	}
	fmt.Fprintf(stdout, "=== DES Encryption/Decryption System - %s ===\n", role)
	fmt.Fprintf(stdout, "Address: %s\n", cfg.Addr())
	fmt.Fprintf(stdout, "Debug mode: %v\n", cfg.Debug)

	var key []uint8
	var err error
	if cfg.hasKey() {
		key, err = cfg.resolveKey()
	} else {
		key, err = promptKey(ctx, in, stdout)
	}
	if err != nil {
		return err
	}

	pc, err := cripta.NewPaddedCipher(key, cfg.cipherOptions(logger)...)
	if err != nil {
		return err
	}

	connectCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var peer *transport.Peer
	if sender {
		fmt.Fprintf(stdout, "Connecting to %s...\n", cfg.Addr())
		peer, err = transport.Dial(connectCtx, cfg.Addr(), pc, cfg.peerOptions(logger)...)
		if errors.Is(err, syscall.ECONNREFUSED) {
			fmt.Fprintf(stdout, "Connection to %s refused. Is the receiver running?\n", cfg.Addr())
		}
		if err != nil {
			return err
		}
	} else {
		ln, err := transport.Listen(ctx, cfg.Addr(), pc, cfg.peerOptions(logger)...)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Listening on %s\n", ln.Addr())
		fmt.Fprintln(stdout, "Waiting for connection...")

		peer, err = ln.Accept(connectCtx)
		ln.Close()
		if err != nil {
			return err
		}
	}
	defer peer.Close()

	fmt.Fprintf(stdout, "Connection established with %s. Ready to communicate.\n", peer.RemoteAddr())

	s := &session{peer: peer, in: in, out: stdout, sender: sender}
	err = s.run(ctx)
	fmt.Fprintf(stdout, "%s terminated.\n", role)
	return err
}

func runFile(ctx context.Context, cfg *Config, logger *slog.Logger, stdout io.Writer) error {
	if _, err := os.Stat(cfg.Input); os.IsNotExist(err) {
		return fmt.Errorf("input file '%s' does not exist", cfg.Input)
	}

	var key []uint8
	var err error
	switch {
	case cfg.hasKey():
		key, err = cfg.resolveKey()
	case cfg.Command == "encrypt":
		key, err = cripta.GenerateKey()
	default:
		err = fmt.Errorf("%w: decrypt needs -key, -key-hex or -passphrase", cripta.ErrInvalidKey)
	}
	if err != nil {
		return err
	}

	pc, err := cripta.NewPaddedCipher(key, cfg.cipherOptions(logger)...)
	if err != nil {
		return err
	}

	startTime := time.Now()

	if cfg.Command == "encrypt" {
		if err := pc.EncryptFile(ctx, cfg.Input, cfg.Output); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "File encrypted: %s -> %s\n", cfg.Input, cfg.Output)
	} else {
		if err := pc.DecryptFile(ctx, cfg.Input, cfg.Output); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "File decrypted: %s -> %s\n", cfg.Input, cfg.Output)
	}

	duration := time.Since(startTime)
	fileInfo, err := os.Stat(cfg.Input)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\nInfo:\n")
	fmt.Fprintf(stdout, "  Parallelism: %d\n", cfg.Parallel)
	fmt.Fprintf(stdout, "  File size: %d bytes\n", fileInfo.Size())
	fmt.Fprintf(stdout, "  Elapsed: %v\n", duration)
	fmt.Fprintf(stdout, "  Key: %s\n", hex.EncodeToString(key))
	return nil
}
