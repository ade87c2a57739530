package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{0xAA, 0xBB, 0xCC}))

	assert.Equal(t, []byte{0, 0, 0, 3, 0xAA, 0xBB, 0xCC}, buf.Bytes())
}

func TestReadFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("first frame"), {}, bytes.Repeat([]byte{7}, 300)}
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&buf, p))
	}

	for _, want := range payloads {
		got, err := ReadFrame(&buf, DefaultMaxFrameSize)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ReadFrame(&buf, DefaultMaxFrameSize)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"partial header", []byte{0, 0}},
		{"partial payload", []byte{0, 0, 0, 8, 1, 2, 3}},
		{"missing payload", []byte{0, 0, 0, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data), DefaultMaxFrameSize)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		})
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	data := []byte{0, 0, 1, 0}

	// the oversized payload is missing, so skipping it fails
	_, err := ReadFrame(bytes.NewReader(data), 255)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrFrameTooLarge)

	// no limit: fails on the missing payload as well
	_, err = ReadFrame(bytes.NewReader(data), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrameSkipsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, bytes.Repeat([]byte{0xAA}, 32)))
	require.NoError(t, WriteFrame(&buf, []byte("next")))

	_, err := ReadFrame(&buf, 16)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	got, err := ReadFrame(&buf, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("next"), got)

	_, err = ReadFrame(&buf, 16)
	assert.Equal(t, io.EOF, err)
}
