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

// Package tcp implements the client-side façade over session.Session:
// own a single Reactor pool, hand out Sessions that dial out with an
// optional connect delay and timeout, and track them in a
// registry.Registry. Grounded on the shape nabbar/golib/socket/client/tcp
// reveals through its test suite (New, Connect, IsRunning) adapted to
// this framework's reactor-affine, callback-driven Session instead of
// that package's blocking Read/Write client, and on
// original_source/include/net/tcpclient.hpp's reconnect-by-user-callback
// model.
package tcp

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/nabbar/nettcp/config"
	"github.com/nabbar/nettcp/log"
	"github.com/nabbar/nettcp/reactor"
	"github.com/nabbar/nettcp/registry"
	"github.com/nabbar/nettcp/session"
)

// ErrNotRunning is returned by Connect once Stop has been called.
var ErrNotRunning = errors.New("tcp: client is not running")

// Client owns a Reactor pool shared by every Session it creates via
// Connect. It has no listening socket of its own.
type Client struct {
	cfg config.Client
	log log.Logger

	pool *reactor.Pool
	reg  *registry.Registry

	nextID  uint64
	running int32
}

// New constructs a Client. cfg.PoolSize/ReactorQueueDepth default the way
// config.LoadClient would if zero.
func New(cfg config.Client, l log.Logger) *Client {
	if l == nil {
		l = log.NewNop()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.ReactorQueueDepth <= 0 {
		cfg.ReactorQueueDepth = 256
	}
	if cfg.RecvBufferInitial <= 0 {
		cfg.RecvBufferInitial = 4096
	}
	return &Client{
		cfg:  cfg,
		log:  l.Named("tcp-client"),
		pool: reactor.NewPool(cfg.PoolSize, cfg.ReactorQueueDepth, l),
		reg:  registry.New(),
	}
}

// Run starts the Client's Reactor pool and blocks until ctx is done, then
// stops it. Mirrors nabbar/golib/socket/client/tcp's Run/Stop pairing.
func (c *Client) Run(ctx context.Context) error {
	c.pool.Start()
	atomic.StoreInt32(&c.running, 1)
	defer func() {
		atomic.StoreInt32(&c.running, 0)
		c.pool.Stop()
	}()

	<-ctx.Done()
	return nil
}

// Stop signals IsRunning to report false; the Reactor pool itself is
// stopped when Run's context is cancelled (Stop does not forcibly
// interrupt Run — callers own the context they passed to Run).
func (c *Client) Stop() {
	atomic.StoreInt32(&c.running, 0)
}

// IsRunning reports whether Run's Reactor pool is active.
func (c *Client) IsRunning() bool { return atomic.LoadInt32(&c.running) == 1 }

// Connect creates a new Session bound to a pooled Reactor and starts
// connecting to remote (host:port), applying delay/timeout per spec.md
// §4.5's connect phase. Returns the Session immediately; OnConnect /
// OnConnectFailure report the outcome asynchronously.
func (c *Client) Connect(remote string, handlers session.Handlers, delay, timeout time.Duration) (*session.Session, error) {
	if !c.IsRunning() {
		return nil, ErrNotRunning
	}

	id := atomic.AddUint64(&c.nextID, 1)
	r := c.pool.Acquire()

	h := handlers
	userOnClose := h.OnClose
	h.OnClose = func(sess *session.Session, err error) {
		c.reg.Remove(sess.SessionID())
		if userOnClose != nil {
			userOnClose(sess, err)
		}
	}

	sess := session.New(id, session.Options{
		Reactor:           r,
		Handlers:          h,
		Logger:            c.log,
		RecvBufferInitial: c.cfg.RecvBufferInitial,
	})

	if c.cfg.SendRateLimit > 0 {
		sess.SetSendRateLimit(c.cfg.SendRateLimit)
	}
	if !c.cfg.ConIdleTimeout.IsZero() {
		sess.SetRecvTimeout(c.cfg.ConIdleTimeout.Time(), false)
	}
	if c.cfg.HeartbeatInterval.Time() > 0 {
		sess.SetHeartbeat([]byte(c.cfg.HeartbeatPayload), c.cfg.HeartbeatInterval.Time())
	}

	if err := c.reg.Insert(sess); err != nil {
		return nil, err
	}

	if err := sess.Connect(remote, delay, timeout); err != nil {
		c.reg.Remove(id)
		return nil, err
	}
	return sess, nil
}
