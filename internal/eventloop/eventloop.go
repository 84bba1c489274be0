//go:build linux

// Package eventloop implements liteDB's single-threaded event loop: one
// non-blocking listening socket and up to MaxClients concurrent
// connections, multiplexed with epoll and driven one readiness-notified
// step at a time through each connection's conn.Conn state machine.
//
// This is the epoll-based analogue of server.c's accept/poll loop
// (accept_new_connection, connection_io, and the readiness array built
// each iteration in the reference's main loop). golang.org/x/sys/unix is
// the only way to reach epoll_wait/epoll_ctl from Go.
package eventloop

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/dreamware/litedb/internal/conn"
	"github.com/dreamware/litedb/internal/metrics"
)

// MaxClients bounds the number of simultaneous connections, matching the
// reference implementation's fd2conn table size.
const MaxClients = 2047

// pollTimeoutMillis is how long a single epoll_wait call blocks before the
// loop re-checks for a shutdown signal.
const pollTimeoutMillis = 1000

// Loop owns the listening socket, the epoll instance, and every active
// connection. It is not safe for concurrent use — Run must be called from
// a single goroutine, by design: the engine handler it drives assumes no
// command ever executes concurrently with another.
type Loop struct {
	listenFD int
	epfd     int
	conns    map[int]*conn.Conn
	handler  conn.Handler
	log      *zap.Logger
}

// New creates the listening socket bound to 0.0.0.0:port and an epoll
// instance watching it, but does not start accepting connections — call
// Run for that. debug enables SO_REUSEADDR, matching the reference's -d
// flag.
func New(port int, debug bool, handler conn.Handler, log *zap.Logger) (*Loop, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("eventloop: socket: %w", err)
	}
	if debug {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("eventloop: setsockopt SO_REUSEADDR: %w", err)
		}
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("eventloop: bind :%d: %w", port, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("eventloop: listen: %w", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("eventloop: epoll_create1: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		unix.Close(epfd)
		unix.Close(fd)
		return nil, fmt.Errorf("eventloop: epoll_ctl add listener: %w", err)
	}

	return &Loop{
		listenFD: fd,
		epfd:     epfd,
		conns:    make(map[int]*conn.Conn),
		handler:  handler,
		log:      log,
	}, nil
}

// Run blocks, servicing readiness events until stop is closed. It returns
// nil on a clean shutdown via stop, or a non-nil error if epoll itself
// fails unrecoverably.
func (l *Loop) Run(stop <-chan struct{}) error {
	events := make([]unix.EpollEvent, MaxClients+1)
	for {
		select {
		case <-stop:
			l.shutdown()
			return nil
		default:
		}

		l.rearmAll()

		n, err := unix.EpollWait(l.epfd, events, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("eventloop: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == l.listenFD {
				if err := l.acceptOne(); err != nil {
					l.log.Warn("accept failed", zap.Error(err))
				}
				continue
			}
			l.service(fd)
		}
	}
}

func (l *Loop) service(fd int) {
	c, ok := l.conns[fd]
	if !ok {
		return
	}
	c.Step()
	if c.State == conn.StateDone {
		l.closeConn(fd)
	}
}

func (l *Loop) acceptOne() error {
	fd, _, err := unix.Accept4(l.listenFD, unix.SOCK_NONBLOCK)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil
		}
		return err
	}

	if len(l.conns) >= MaxClients {
		unix.Close(fd)
		return fmt.Errorf("eventloop: connection table full (%d)", MaxClients)
	}

	c := conn.New(fd, l.handler)
	l.conns[fd] = c
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Set(float64(len(l.conns)))
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: c.EpollEvents(), Fd: int32(fd)})
}

// rearmAll updates each connection's epoll interest to match its current
// state — REQ watches for readable, RESP watches for writable — the epoll
// equivalent of rebuilding the readiness descriptor array every iteration.
func (l *Loop) rearmAll() {
	for fd, c := range l.conns {
		ev := &unix.EpollEvent{Events: c.EpollEvents(), Fd: int32(fd)}
		if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
			l.log.Warn("epoll_ctl mod failed", zap.Int("fd", fd), zap.Error(err))
		}
	}
}

func (l *Loop) closeConn(fd int) {
	c := l.conns[fd]
	delete(l.conns, fd)
	metrics.ConnectionsActive.Set(float64(len(l.conns)))
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	_ = c.Close()
}

func (l *Loop) shutdown() {
	for fd := range l.conns {
		l.closeConn(fd)
	}
	unix.Close(l.listenFD)
	unix.Close(l.epfd)
}
