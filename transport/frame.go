// Package transport carries DES-encrypted messages between two peers over a
// stream. Each message travels as one frame: a 4-byte big-endian length
// followed by that many bytes of ciphertext.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	HeaderSize          = 4
	DefaultMaxFrameSize = 16 << 20
)

var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame writes the length prefix and payload with a single Write.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame. It returns io.EOF unwrapped when the stream ends
// cleanly before a header, and io.ErrUnexpectedEOF when it ends mid-frame.
// A frame longer than maxSize is read and thrown away before ErrFrameTooLarge
// is returned, so the stream stays aligned on frame boundaries. A maxSize of
// 0 disables the size check.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if maxSize > 0 && size > maxSize {
		// Skip the payload so the next call starts on a header again.
		if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("failed to skip oversized frame payload: %w", err)
		}
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, size, maxSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}

	return payload, nil
}
