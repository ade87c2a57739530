package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/nPaBwaYT/deslink/cripta"
)

// Peer is one end of an established connection. Send and Receive may be
// called from different goroutines; concurrent calls to the same one are
// serialized.
type Peer struct {
	conn         net.Conn
	cipher       *cripta.PaddedCipher
	logger       *slog.Logger
	maxFrameSize uint32

	sendMu sync.Mutex
	recvMu sync.Mutex
}

type Option func(*Peer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Peer) {
		p.logger = logger
	}
}

// WithMaxFrameSize bounds the ciphertext length accepted by Receive.
func WithMaxFrameSize(n uint32) Option {
	return func(p *Peer) {
		p.maxFrameSize = n
	}
}

func NewPeer(conn net.Conn, cipher *cripta.PaddedCipher, opts ...Option) *Peer {
	p := &Peer{
		conn:         conn,
		cipher:       cipher,
		logger:       slog.Default(),
		maxFrameSize: DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("remote", conn.RemoteAddr().String())
	return p
}

// Dial connects to a listening peer.
func Dial(ctx context.Context, addr string, cipher *cripta.PaddedCipher, opts ...Option) (*Peer, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	p := NewPeer(conn, cipher, opts...)
	p.logger.Info("connected")
	return p, nil
}

func (p *Peer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

// Send encrypts message and writes it as one frame.
func (p *Peer) Send(ctx context.Context, message []byte) error {
	ciphertext, err := p.cipher.EncryptContext(ctx, message)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	release := bindDeadline(ctx, p.conn.SetWriteDeadline)
	err = WriteFrame(p.conn, ciphertext)
	release()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("send: %w", ctx.Err())
		}
		return err
	}

	p.logger.Debug("frame sent", "plaintext", len(message), "ciphertext", len(ciphertext))
	return nil
}

// Receive reads one frame and decrypts it. It returns io.EOF when the peer
// closed the connection between messages.
func (p *Peer) Receive(ctx context.Context) ([]byte, error) {
	ciphertext, err := p.ReceiveCiphertext(ctx)
	if err != nil {
		return nil, err
	}
	return p.Decrypt(ctx, ciphertext)
}

// ReceiveCiphertext reads one frame without decrypting it. An oversized
// frame is skipped and reported as ErrFrameTooLarge; the connection remains
// usable afterwards.
func (p *Peer) ReceiveCiphertext(ctx context.Context) ([]byte, error) {
	p.recvMu.Lock()
	defer p.recvMu.Unlock()

	release := bindDeadline(ctx, p.conn.SetReadDeadline)
	ciphertext, err := ReadFrame(p.conn, p.maxFrameSize)
	release()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("receive: %w", ctx.Err())
		}
		return nil, err
	}

	p.logger.Debug("frame received", "ciphertext", len(ciphertext))
	return ciphertext, nil
}

// Decrypt opens a ciphertext taken from ReceiveCiphertext.
func (p *Peer) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	plaintext, err := p.cipher.DecryptContext(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func (p *Peer) Close() error {
	p.logger.Info("connection closed")
	return p.conn.Close()
}

// bindDeadline maps ctx onto a connection deadline so that a blocked read or
// write returns once ctx is done. The returned func clears the deadline.
//
// The deadline is only set after ctx is done, so a timed-out call always
// observes ctx.Err() != nil.
func bindDeadline(ctx context.Context, set func(time.Time) error) func() {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = set(time.Unix(1, 0))
		close(fired)
	})
	return func() {
		if !stop() {
			<-fired
		}
		_ = set(time.Time{})
	}
}
