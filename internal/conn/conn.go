//go:build linux

// Package conn implements the per-client request/response state machine:
// REQ (filling the read buffer and draining complete request frames),
// RESP (flushing the write buffer), and DONE (ready for the event loop to
// close the file descriptor and reclaim the slot).
//
// This is a close port of server.c's try_fill_read_buffer,
// try_process_single_request, try_flush_write_buffer, state_req, and
// state_resp, operating directly on a raw non-blocking file descriptor via
// golang.org/x/sys/unix rather than libc's read(2)/write(2) wrappers. Unlike
// the original, responses are serialized directly into the write buffer by
// protocol.Encode in a single pass: there is no second pass that re-parses
// already-encoded bytes to compute sizes.
package conn

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/dreamware/litedb/internal/protocol"
)

// State is the connection's position in the REQ -> RESP -> DONE cycle.
type State int

const (
	StateReq State = iota
	StateResp
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReq:
		return "REQ"
	case StateResp:
		return "RESP"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// bufSize is 4 bytes of length prefix plus the maximum payload plus one,
// for both the read and write buffers.
const bufSize = 4 + protocol.MaxMessageSize + 1

// Handler executes one parsed request and returns the response to send
// back. The engine package supplies this.
type Handler func(req protocol.Request) protocol.Response

// Conn is one client connection's buffered state machine.
type Conn struct {
	FD    int
	State State

	readBuf  [bufSize]byte
	readSize int

	write     []byte
	writeNeed int
	writeDone int

	handle Handler
}

// New wraps fd (already accepted and set non-blocking by the caller) in a
// Conn starting in StateReq.
func New(fd int, handle Handler) *Conn {
	return &Conn{
		FD:     fd,
		State:  StateReq,
		write:  make([]byte, 0, bufSize),
		handle: handle,
	}
}

// EpollEvents reports the readiness interest the event loop should
// register for this connection: readable while filling a request,
// writable while draining a response.
func (c *Conn) EpollEvents() uint32 {
	switch c.State {
	case StateReq:
		return unix.EPOLLIN
	case StateResp:
		return unix.EPOLLOUT
	default:
		return 0
	}
}

// Step runs the connection's current state until it would block, matching
// connection_io's dispatch to state_req/state_resp.
func (c *Conn) Step() {
	switch c.State {
	case StateReq:
		for c.tryFillReadBuffer() {
		}
	case StateResp:
		for c.tryFlushWriteBuffer() {
		}
	}
}

// Close releases the underlying file descriptor. The event loop calls this
// once State has become StateDone.
func (c *Conn) Close() error {
	return unix.Close(c.FD)
}

func (c *Conn) tryFillReadBuffer() bool {
	if c.readSize > len(c.readBuf) {
		c.State = StateDone
		return false
	}

	var n int
	var err error
	for {
		n, err = unix.Read(c.FD, c.readBuf[c.readSize:])
		if err == unix.EINTR {
			continue
		}
		break
	}

	if err != nil {
		if err == unix.EAGAIN {
			return false
		}
		c.State = StateDone
		return false
	}

	if n == 0 {
		// EOF. A non-empty leftover buffer means a partial message never
		// completed — still a shutdown, just an unclean one; either way the
		// connection is done.
		c.State = StateDone
		return false
	}

	c.readSize += n
	if c.readSize > len(c.readBuf) {
		c.State = StateDone
		return false
	}

	for c.processOneRequest() {
	}
	return c.State == StateReq
}

func (c *Conn) processOneRequest() bool {
	if c.readSize < 4 {
		return false
	}
	msgLen := int(binary.LittleEndian.Uint32(c.readBuf[:4]))
	if msgLen > protocol.MaxMessageSize {
		c.State = StateDone
		return false
	}
	if c.readSize < 4+msgLen {
		return false
	}

	payload := c.readBuf[4 : 4+msgLen]
	resp := c.execute(payload)

	c.write = c.write[:0]
	c.write = protocol.Encode(c.write, resp)
	if len(c.write) > bufSize {
		c.State = StateDone
		return false
	}
	c.writeDone = 0
	c.writeNeed = len(c.write)

	remaining := c.readSize - (4 + msgLen)
	if remaining > 0 {
		copy(c.readBuf[:remaining], c.readBuf[4+msgLen:4+msgLen+remaining])
	}
	c.readSize = remaining

	c.State = StateResp
	for c.tryFlushWriteBuffer() {
	}

	return c.State == StateReq
}

func (c *Conn) execute(payload []byte) protocol.Response {
	req, err := protocol.ParseRequest(payload)
	if err != nil {
		return protocol.Err(err.Error())
	}
	if req.Name == "" {
		return protocol.Err("empty command")
	}
	return c.handle(req)
}

func (c *Conn) tryFlushWriteBuffer() bool {
	var n int
	var err error
	for {
		n, err = unix.Write(c.FD, c.write[c.writeDone:c.writeNeed])
		if err == unix.EINTR {
			continue
		}
		break
	}

	if err != nil {
		if err == unix.EAGAIN {
			return false
		}
		c.State = StateDone
		return false
	}

	c.writeDone += n
	if c.writeDone > c.writeNeed {
		c.State = StateDone
		return false
	}
	if c.writeDone == c.writeNeed {
		c.State = StateReq
		c.writeDone = 0
		c.writeNeed = 0
		return false
	}
	return true
}
