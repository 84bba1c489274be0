//go:build linux

package conn

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/dreamware/litedb/internal/protocol"
)

// newPair returns a connected (serverFD, clientFD) socketpair, with
// serverFD set non-blocking the way the event loop would set an accepted
// connection.
func newPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func writeFrame(t *testing.T, fd int, payload string) {
	t.Helper()
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	_, err := unix.Write(fd, lenBuf[:])
	require.NoError(t, err)
	_, err = unix.Write(fd, []byte(payload))
	require.NoError(t, err)
}

func readAll(t *testing.T, fd int) []byte {
	t.Helper()
	buf := make([]byte, 4096)
	deadline := time.Now().Add(2 * time.Second)
	var out []byte
	for time.Now().Before(deadline) {
		n, err := unix.Read(fd, buf)
		if err == unix.EAGAIN {
			time.Sleep(time.Millisecond)
			continue
		}
		require.NoError(t, err)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
		return out
	}
	return out
}

func TestSingleRequestResponse(t *testing.T) {
	serverFD, clientFD := newPair(t)

	c := New(serverFD, func(req protocol.Request) protocol.Response {
		assert.Equal(t, "PING", req.Name)
		return protocol.Str("PONG")
	})

	writeFrame(t, clientFD, "PING")
	c.Step()

	assert.Equal(t, StateReq, c.State)

	out := readAll(t, clientFD)
	decoded, rest, err := protocol.DecodeResponse(out)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, "PONG", decoded.Str)
}

func TestPipelinedRequestsRespondInOrder(t *testing.T) {
	serverFD, clientFD := newPair(t)

	var seen []string
	c := New(serverFD, func(req protocol.Request) protocol.Response {
		seen = append(seen, req.Name)
		return protocol.Str(req.Name)
	})

	writeFrame(t, clientFD, "ONE")
	writeFrame(t, clientFD, "TWO")
	writeFrame(t, clientFD, "THREE")
	c.Step()

	assert.Equal(t, []string{"ONE", "TWO", "THREE"}, seen)

	out := readAll(t, clientFD)
	var got []string
	rest := out
	for len(rest) > 0 {
		var d protocol.Decoded
		var err error
		d, rest, err = protocol.DecodeResponse(rest)
		require.NoError(t, err)
		got = append(got, d.Str)
	}
	assert.Equal(t, []string{"ONE", "TWO", "THREE"}, got)
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	serverFD, clientFD := newPair(t)

	c := New(serverFD, func(req protocol.Request) protocol.Response {
		return protocol.Nil
	})

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(protocol.MaxMessageSize+1))
	_, err := unix.Write(clientFD, lenBuf[:])
	require.NoError(t, err)

	c.Step()
	assert.Equal(t, StateDone, c.State)
}

func TestEOFWithEmptyBufferMovesToDone(t *testing.T) {
	serverFD, clientFD := newPair(t)
	c := New(serverFD, func(req protocol.Request) protocol.Response { return protocol.Nil })

	require.NoError(t, unix.Shutdown(clientFD, unix.SHUT_WR))
	c.Step()
	assert.Equal(t, StateDone, c.State)
}
