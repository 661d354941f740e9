package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, nil))
	require.NoError(t, WriteFrame(&buf, []byte("world")))

	f1, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), f1)

	f2, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Empty(t, f2)

	f3, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), f3)

	_, err = ReadFrame(&buf, 0)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, bytes.Repeat([]byte{1}, 64)))

	_, err := ReadFrame(&buf, 16)
	require.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("truncated payload")))
	short := buf.Bytes()[:buf.Len()-4]

	_, err := ReadFrame(bytes.NewReader(short), 0)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
