package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/nPaBwaYT/deslink/cripta"
)

// Listener accepts peers that share the listener's cipher.
type Listener struct {
	ln     net.Listener
	cipher *cripta.PaddedCipher
	opts   []Option
}

func Listen(ctx context.Context, addr string, cipher *cripta.PaddedCipher, opts ...Option) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return &Listener{
		ln:     ln,
		cipher: cipher,
		opts:   opts,
	}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the next connection or until ctx is done.
func (l *Listener) Accept(ctx context.Context) (*Peer, error) {
	if tl, ok := l.ln.(*net.TCPListener); ok {
		release := bindDeadline(ctx, tl.SetDeadline)
		defer release()
	}

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("accept: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	}

	p := NewPeer(conn, l.cipher, l.opts...)
	p.logger.Info("connection accepted")
	return p, nil
}

func (l *Listener) Close() error {
	return l.ln.Close()
}
