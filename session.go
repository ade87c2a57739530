package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nPaBwaYT/deslink/cripta"
	"github.com/nPaBwaYT/deslink/transport"
)

// lineReader reads stdin on its own goroutine so that prompts can be
// abandoned when ctx is done.
type lineReader struct {
	lines chan string
	err   error
}

func newLineReader(ctx context.Context, r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan string)}
	go func() {
		defer close(lr.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lr.lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		lr.err = sc.Err()
	}()
	return lr
}

// ReadLine returns the next line without its terminator, or io.EOF once the
// input is exhausted.
func (lr *lineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-lr.lines:
		if !ok {
			if lr.err != nil {
				return "", lr.err
			}
			return "", io.EOF
		}
		return strings.TrimSuffix(line, "\r"), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// promptKey asks for a key until the answer is exactly 8 bytes long.
func promptKey(ctx context.Context, in *lineReader, out io.Writer) ([]uint8, error) {
	for {
		fmt.Fprintf(out, "\nEnter %d-character encryption key: ", cripta.DESKeySize)
		line, err := in.ReadLine(ctx)
		if err != nil {
			return nil, err
		}

		key, err := cripta.ParseKey(line)
		if err == nil {
			return key, nil
		}
		fmt.Fprintf(out, "Error: Key must be exactly %d characters.\n", cripta.DESKeySize)
	}
}

type action int

const (
	actionInvalid action = iota
	actionSend
	actionReceive
	actionExit
)

type session struct {
	peer   *transport.Peer
	in     *lineReader
	out    io.Writer
	sender bool
}

// menu lists the choices in the order the role offers them: the sender
// sends first, the receiver receives first.
func (s *session) menu() []action {
	if s.sender {
		return []action{actionSend, actionReceive, actionExit}
	}
	return []action{actionReceive, actionSend, actionExit}
}

func (s *session) printMenu() {
	names := map[action]string{
		actionSend:    "Send message",
		actionReceive: "Receive message",
		actionExit:    "Exit",
	}

	fmt.Fprintln(s.out, "\nOptions:")
	for i, a := range s.menu() {
		fmt.Fprintf(s.out, "%d. %s\n", i+1, names[a])
	}
	fmt.Fprint(s.out, "Enter choice (1-3): ")
}

func (s *session) choose(input string) action {
	menu := s.menu()
	for i := range menu {
		if input == fmt.Sprint(i+1) {
			return menu[i]
		}
	}
	return actionInvalid
}

// run drives the menu until the user exits, stdin ends, the peer hangs up
// or ctx is done. Undecryptable and oversized messages are reported and the
// loop continues; any other connection error ends the session.
func (s *session) run(ctx context.Context) error {
	for {
		s.printMenu()
		line, err := s.in.ReadLine(ctx)
		if err != nil {
			return ignoreEOF(err)
		}

		switch s.choose(strings.TrimSpace(line)) {
		case actionSend:
			err = s.sendMessage(ctx)
		case actionReceive:
			err = s.receiveMessage(ctx)
		case actionExit:
			return nil
		default:
			fmt.Fprintln(s.out, "Invalid choice. Please try again.")
			continue
		}

		switch {
		case err == nil:
		case errors.Is(err, errInputClosed):
			return nil
		case errors.Is(err, io.EOF):
			fmt.Fprintln(s.out, "Connection closed by peer.")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case recoverable(err):
			fmt.Fprintf(s.out, "Error: %v\n", err)
		default:
			fmt.Fprintf(s.out, "Connection lost: %v\n", err)
			return err
		}
	}
}

// errInputClosed marks the end of stdin in the middle of an action, as
// opposed to io.EOF from the peer.
var errInputClosed = errors.New("input closed")

// recoverable reports whether the connection is still in a known state after
// err: the bad frame has been consumed in full and the next one can be read.
func recoverable(err error) bool {
	return errors.Is(err, transport.ErrFrameTooLarge) ||
		errors.Is(err, cripta.ErrInvalidInput) ||
		errors.Is(err, cripta.ErrInvalidPadding)
}

func (s *session) sendMessage(ctx context.Context) error {
	fmt.Fprint(s.out, "Enter message to send: ")
	line, err := s.in.ReadLine(ctx)
	if errors.Is(err, io.EOF) {
		return errInputClosed
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "Encrypting message...")
	if err := s.peer.Send(ctx, []byte(line)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	fmt.Fprintln(s.out, "Message sent successfully.")
	return nil
}

func (s *session) receiveMessage(ctx context.Context) error {
	fmt.Fprintln(s.out, "Waiting for message...")
	ciphertext, err := s.peer.ReceiveCiphertext(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Received %d encrypted bytes.\n", len(ciphertext))

	fmt.Fprintln(s.out, "Decrypting message...")
	message, err := s.peer.Decrypt(ctx, ciphertext)
	if err != nil {
		return err
	}
	displayMessage(s.out, message)
	return nil
}

func displayMessage(w io.Writer, message []byte) {
	separator := strings.Repeat("-", 40)

	if !utf8.Valid(message) {
		fmt.Fprintln(w, "Warning: Could not decode message as UTF-8.")
		fmt.Fprintf(w, "Raw bytes: %q\n", message)
		return
	}

	fmt.Fprintln(w, "\nReceived message:")
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, string(message))
	fmt.Fprintln(w, separator)
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
