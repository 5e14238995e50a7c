/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package tcp implements the server-side façade over session.Session, a
// reactor.Pool and a registry.Registry: listen, accept, hand each
// accepted connection to a round-robin Reactor, and track it in a
// Registry for lookup and broadcast. Grounded on the method names and
// behavior revealed by nabbar/golib/socket/server/tcp's test suite
// (New, Listen, IsRunning, IsGone, OpenConnections) and
// original_source/include/net/tcpserver.hpp's accept loop.
package tcp

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nabbar/nettcp/config"
	"github.com/nabbar/nettcp/log"
	"github.com/nabbar/nettcp/reactor"
	"github.com/nabbar/nettcp/registry"
	"github.com/nabbar/nettcp/session"
)

// ErrInvalidAddress is returned by New when cfg.Address cannot be parsed
// as a TCP listen address.
var ErrInvalidAddress = errors.New("tcp: invalid listen address")

// UpdateConn optionally tweaks an accepted net.Conn (e.g. buffer sizes)
// before it is wrapped in a Session, mirroring nabbar/golib/socket's
// UpdateConn hook.
type UpdateConn func(net.Conn)

// OnAcceptFailed fires whenever lis.Accept() returns a non-shutdown error
// (spec.md §4.6, §6's Server<S> virtual hook). The accept loop keeps
// running afterwards; this hook is purely observational.
type OnAcceptFailed func(err error)

// Server listens for inbound connections and runs each as a Session on
// a pooled Reactor. The zero value is not usable; construct with New.
type Server struct {
	cfg            config.Server
	upd            UpdateConn
	h              session.Handlers
	log            log.Logger
	onAcceptFailed OnAcceptFailed

	pool *reactor.Pool
	reg  *registry.Registry

	lis net.Listener

	running int32
	gone    int32
	nextID  uint64
	open    int64
}

// New validates cfg and constructs a Server. upd and onAcceptFailed may be
// nil. handlers configures every accepted Session identically (stream or
// framed mode, chosen by which fields handlers sets, per session.Handlers).
func New(upd UpdateConn, onAcceptFailed OnAcceptFailed, handlers session.Handlers, cfg config.Server, l log.Logger) (*Server, error) {
	if cfg.Address == "" {
		return nil, ErrInvalidAddress
	}
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	if l == nil {
		l = log.NewNop()
	}

	s := &Server{
		cfg:            cfg,
		upd:            upd,
		h:              handlers,
		log:            l.Named("tcp-server"),
		onAcceptFailed: onAcceptFailed,
		pool:           reactor.NewPool(cfg.PoolSize, cfg.ReactorQueueDepth, l),
		reg:            registry.New(),
		gone:           1,
	}
	return s, nil
}

// Listen opens the listening socket and accepts connections until ctx is
// done (spec.md §4.6). An accept error does not end Listen: it is logged,
// passed to OnAcceptFailed if set, and the loop accepts again. Blocks the
// calling goroutine; callers typically run it in its own goroutine.
func (s *Server) Listen(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.lis = lis

	s.pool.Start()
	atomic.StoreInt32(&s.running, 1)
	atomic.StoreInt32(&s.gone, 0)

	defer func() {
		_ = lis.Close()
		s.pool.Stop()
		atomic.StoreInt32(&s.running, 0)
		atomic.StoreInt32(&s.gone, 1)
	}()

	// errgroup ties the accept loop and the context-cancellation watcher
	// together: whichever goroutine exits first, the other is torn down
	// too (closing lis unblocks Accept; ctx.Done already unblocked the
	// watcher), and Wait reports the accept loop's real error instead of
	// a value raced against a bare "return nil" from the watcher.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		_ = lis.Close()
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := lis.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				s.log.Warn("accept failed", "error", err)
				if s.onAcceptFailed != nil {
					s.onAcceptFailed(err)
				}
				continue
			}
			if s.upd != nil {
				s.upd(conn)
			}
			s.acceptConn(gctx, conn)
		}
	})

	return g.Wait()
}

func (s *Server) acceptConn(ctx context.Context, conn net.Conn) {
	id := atomic.AddUint64(&s.nextID, 1)
	r := s.pool.Acquire()

	h := s.h
	userOnClose := h.OnClose
	h.OnClose = func(sess *session.Session, err error) {
		atomic.AddInt64(&s.open, -1)
		s.reg.Remove(sess.SessionID())
		if userOnClose != nil {
			userOnClose(sess, err)
		}
	}

	sess := session.New(id, session.Options{
		Reactor:           r,
		Handlers:          h,
		Logger:            s.log,
		RecvBufferInitial: s.cfg.RecvBufferInitial,
	})

	if s.cfg.SendRateLimit > 0 {
		sess.SetSendRateLimit(s.cfg.SendRateLimit)
	}
	if !s.cfg.ConIdleTimeout.IsZero() {
		sess.SetRecvTimeout(s.cfg.ConIdleTimeout.Time(), false)
	}
	if s.cfg.HeartbeatInterval.Time() > 0 {
		sess.SetHeartbeat([]byte(s.cfg.HeartbeatPayload), s.cfg.HeartbeatInterval.Time())
	}

	if err := s.reg.Insert(sess); err != nil {
		s.log.Error("duplicate session id", "id", id, "error", err)
		_ = conn.Close()
		return
	}
	atomic.AddInt64(&s.open, 1)

	r.Post(func(ctx context.Context) { sess.Accept(ctx, conn) })
}

// IsRunning reports whether Listen is actively accepting.
func (s *Server) IsRunning() bool { return atomic.LoadInt32(&s.running) == 1 }

// IsGone reports whether Listen has returned (or never started).
func (s *Server) IsGone() bool { return atomic.LoadInt32(&s.gone) == 1 }

// OpenConnections returns the number of currently Running sessions.
func (s *Server) OpenConnections() int64 { return atomic.LoadInt64(&s.open) }

// Send delivers p to the session identified by id, if it is Running.
func (s *Server) Send(id uint64, p []byte) bool {
	h, ok := s.reg.Get(id)
	if !ok {
		return false
	}
	return h.Send(p)
}

// Broadcast delivers p to every Running session, per registry.Broadcast.
func (s *Server) Broadcast(p []byte) int {
	return s.reg.Broadcast(p)
}
