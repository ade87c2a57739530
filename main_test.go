package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nPaBwaYT/deslink/cripta"
	"github.com/nPaBwaYT/deslink/transport"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv(keyEnv, "")

	send, err := parseConfig("send", nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "localhost:12345", send.Addr())
	assert.Equal(t, 1, send.Parallel)
	assert.Equal(t, uint(transport.DefaultMaxFrameSize), send.MaxFrame)
	assert.False(t, send.hasKey())

	receive, err := parseConfig("receive", []string{"-port", "4000", "-debug"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:4000", receive.Addr())
	assert.True(t, receive.Debug)
}

func TestParseConfigKeyFromEnv(t *testing.T) {
	t.Setenv(keyEnv, "ENVKEY!!")

	cfg, err := parseConfig("send", nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "ENVKEY!!", cfg.Key)

	cfg, err = parseConfig("send", []string{"-key-hex", "0123456789ABCDEF"}, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, cfg.Key)
}

func TestParseConfigErrors(t *testing.T) {
	t.Setenv(keyEnv, "")

	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{"two key sources", "send", []string{"-key", "SECRET!!", "-passphrase", "x"}},
		{"port zero", "send", []string{"-port", "0"}},
		{"port too big", "receive", []string{"-port", "70000"}},
		{"negative timeout", "send", []string{"-timeout", "-1s"}},
		{"no parallelism", "encrypt", []string{"-parallel", "0", "a", "b"}},
		{"missing files", "encrypt", []string{"a"}},
		{"stray argument", "send", []string{"extra"}},
		{"unknown flag", "send", []string{"-nope"}},
		{"peer flag on file command", "decrypt", []string{"-port", "1", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.command, tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestResolveKey(t *testing.T) {
	key, err := (&Config{Key: "SECRET!!"}).resolveKey()
	require.NoError(t, err)
	assert.Equal(t, []uint8("SECRET!!"), key)

	key, err = (&Config{KeyHex: "0123456789abcdef"}).resolveKey()
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}, key)

	key, err = (&Config{Passphrase: "pass", Salt: "salt", Iterations: 10}).resolveKey()
	require.NoError(t, err)
	assert.Equal(t, cripta.DeriveKey("pass", []uint8("salt"), 10), key)

	_, err = (&Config{Key: "short"}).resolveKey()
	assert.ErrorIs(t, err, cripta.ErrInvalidKey)

	_, err = (&Config{}).resolveKey()
	assert.ErrorIs(t, err, cripta.ErrInvalidKey)
}

func TestDebugTraceLogsStages(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, true)

	cfg := &Config{Parallel: 1, Debug: true}
	_, err := cripta.NewPaddedCipher([]uint8("SECRET!!"), cfg.cipherOptions(logger)...)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "stage=pc1")
	assert.Contains(t, buf.String(), `stage="subkey 16"`)
}

func TestRunFileRoundTrip(t *testing.T) {
	t.Setenv(keyEnv, "")
	ctx := context.Background()

	dir := t.TempDir()
	in := filepath.Join(dir, "plain.txt")
	enc := filepath.Join(dir, "plain.enc")
	out := filepath.Join(dir, "plain.out")
	content := []byte("some file contents, longer than a single block")
	require.NoError(t, os.WriteFile(in, content, 0644))

	var stdout bytes.Buffer
	err := run(ctx, "encrypt", []string{"-key", "SECRET!!", "-parallel", "3", in, enc}, nil, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "File encrypted")
	assert.Contains(t, stdout.String(), "Key: 5345435245542121")

	encrypted, err := os.ReadFile(enc)
	require.NoError(t, err)
	assert.Len(t, encrypted, (len(content)/8+1)*8)

	err = run(ctx, "decrypt", []string{"-key", "SECRET!!", enc, out}, nil, io.Discard, io.Discard)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRunFileKeys(t *testing.T) {
	t.Setenv(keyEnv, "")
	ctx := context.Background()

	dir := t.TempDir()
	in := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(in, []byte("hi"), 0644))

	var stdout bytes.Buffer
	err := run(ctx, "encrypt", []string{in, filepath.Join(dir, "out.enc")}, nil, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Key: ")

	err = run(ctx, "decrypt", []string{filepath.Join(dir, "out.enc"), filepath.Join(dir, "out.txt")}, nil, io.Discard, io.Discard)
	assert.ErrorIs(t, err, cripta.ErrInvalidKey)

	err = run(ctx, "encrypt", []string{"-key", "SECRET!!", filepath.Join(dir, "missing"), filepath.Join(dir, "x")}, nil, io.Discard, io.Discard)
	assert.Error(t, err)
}

func TestRunSendRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	var stdout bytes.Buffer
	args := []string{"-host", "127.0.0.1", "-port", strconv.Itoa(port), "-key", "SECRET!!"}
	err = run(context.Background(), "send", args, strings.NewReader(""), &stdout, io.Discard)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Contains(t, stdout.String(), "refused. Is the receiver running?")
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	err := run(context.Background(), "bogus", nil, nil, io.Discard, &stderr)
	assert.Error(t, err)
	assert.Contains(t, stderr.String(), "Usage:")
}

func TestLineReader(t *testing.T) {
	ctx := context.Background()
	in := newLineReader(ctx, strings.NewReader("first\r\nsecond\n"))

	line, err := in.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = in.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = in.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReaderHonorsContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	in := newLineReader(ctx, r)
	cancel()

	_, err := in.ReadLine(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptKeyReprompts(t *testing.T) {
	ctx := context.Background()
	in := newLineReader(ctx, strings.NewReader("short\nmuch too long\nSECRET!!\n"))

	var out bytes.Buffer
	key, err := promptKey(ctx, in, &out)
	require.NoError(t, err)
	assert.Equal(t, []uint8("SECRET!!"), key)
	assert.Equal(t, 2, strings.Count(out.String(), "Error: Key must be exactly 8 characters."))

	_, err = promptKey(ctx, newLineReader(ctx, strings.NewReader("")), io.Discard)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDisplayMessage(t *testing.T) {
	var out bytes.Buffer
	displayMessage(&out, []byte("héllo"))
	assert.Equal(t, "\nReceived message:\n"+strings.Repeat("-", 40)+"\nhéllo\n"+strings.Repeat("-", 40)+"\n", out.String())

	out.Reset()
	displayMessage(&out, []byte{0xff, 0xfe})
	assert.Contains(t, out.String(), "Could not decode message as UTF-8")
	assert.Contains(t, out.String(), `Raw bytes: "\xff\xfe"`)
}

func TestMenuOrder(t *testing.T) {
	sender := &session{sender: true}
	receiver := &session{}

	assert.Equal(t, actionSend, sender.choose("1"))
	assert.Equal(t, actionReceive, sender.choose("2"))
	assert.Equal(t, actionReceive, receiver.choose("1"))
	assert.Equal(t, actionSend, receiver.choose("2"))
	assert.Equal(t, actionExit, receiver.choose("3"))
	assert.Equal(t, actionInvalid, receiver.choose("4"))
	assert.Equal(t, actionInvalid, receiver.choose(""))
}

func newTestPeer(t *testing.T, conn net.Conn) *transport.Peer {
	t.Helper()

	pc, err := cripta.NewPaddedCipher([]uint8("SECRET!!"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return transport.NewPeer(conn, pc, transport.WithLogger(logger))
}

// newPipeSession returns a session fed by script and the raw far end of its
// connection.
func newPipeSession(t *testing.T, sender bool, script string) (*session, net.Conn, *bytes.Buffer) {
	t.Helper()

	a, b := net.Pipe()
	local := newTestPeer(t, a)
	t.Cleanup(func() {
		local.Close()
		b.Close()
	})

	out := &bytes.Buffer{}
	s := &session{
		peer:   local,
		in:     newLineReader(context.Background(), strings.NewReader(script)),
		out:    out,
		sender: sender,
	}
	return s, b, out
}

func TestSessionExchange(t *testing.T) {
	s, conn, out := newPipeSession(t, true, "1\nhello there\n2\n3\n")
	remote := newTestPeer(t, conn)
	ctx := context.Background()

	received := make(chan []byte, 1)
	errs := make(chan error, 2)
	go func() {
		msg, err := remote.Receive(ctx)
		if err != nil {
			errs <- err
			return
		}
		received <- msg
		errs <- remote.Send(ctx, []byte("general kenobi"))
	}()

	require.NoError(t, s.run(ctx))
	require.NoError(t, <-errs)
	assert.Equal(t, []byte("hello there"), <-received)

	assert.Contains(t, out.String(), "1. Send message")
	assert.Contains(t, out.String(), "Encrypting message...")
	assert.Contains(t, out.String(), "Message sent successfully.")
	assert.Contains(t, out.String(), "general kenobi")
}

func TestSessionPeerClosed(t *testing.T) {
	s, conn, out := newPipeSession(t, false, "1\n1\n")
	require.NoError(t, conn.Close())

	require.NoError(t, s.run(context.Background()))
	assert.Contains(t, out.String(), "1. Receive message")
	assert.Equal(t, 1, strings.Count(out.String(), "Connection closed by peer."))
}

func TestSessionReportsAndContinues(t *testing.T) {
	s, conn, out := newPipeSession(t, false, "7\n1\n")

	go func() {
		// Seven bytes can never be a valid ciphertext.
		_ = transport.WriteFrame(conn, []byte("1234567"))
	}()

	require.NoError(t, s.run(context.Background()))
	assert.Contains(t, out.String(), "Invalid choice. Please try again.")
	assert.Contains(t, out.String(), "Error: decryption failed")
}

func TestSessionInputClosedMidSend(t *testing.T) {
	s, _, out := newPipeSession(t, true, "1\n")

	require.NoError(t, s.run(context.Background()))
	assert.Contains(t, out.String(), "Enter message to send: ")
	assert.NotContains(t, out.String(), "Connection closed by peer.")
	assert.NotContains(t, out.String(), "Encrypting message...")
}

func TestSessionSkipsOversizedFrame(t *testing.T) {
	a, b := net.Pipe()
	pc, err := cripta.NewPaddedCipher([]uint8("SECRET!!"))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	local := transport.NewPeer(a, pc, transport.WithLogger(logger), transport.WithMaxFrameSize(16))
	remote := transport.NewPeer(b, pc, transport.WithLogger(logger))
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})

	out := &bytes.Buffer{}
	s := &session{
		peer: local,
		in:   newLineReader(context.Background(), strings.NewReader("1\n1\n")),
		out:  out,
	}

	errc := make(chan error, 1)
	go func() {
		if err := transport.WriteFrame(b, make([]byte, 32)); err != nil {
			errc <- err
			return
		}
		errc <- remote.Send(context.Background(), []byte("hello"))
	}()

	require.NoError(t, s.run(context.Background()))
	require.NoError(t, <-errc)
	assert.Contains(t, out.String(), "Error: frame too large")
	assert.Contains(t, out.String(), "Received 8 encrypted bytes.")
	assert.Contains(t, out.String(), "Decrypting message...")
	assert.Contains(t, out.String(), "\nhello\n")
}

func TestSessionEndsOnBrokenConnection(t *testing.T) {
	s, conn, out := newPipeSession(t, false, "1\n1\n")

	go func() {
		// header promises 16 bytes, then the connection drops
		_, _ = conn.Write([]byte{0, 0, 0, 16, 1, 2, 3})
		conn.Close()
	}()

	err := s.run(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, strings.Count(out.String(), "Waiting for message..."))
	assert.Contains(t, out.String(), "Connection lost:")
}
