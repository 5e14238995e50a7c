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

// Command echo-server demonstrates the framed-mode contract end to end:
// a 4-byte big-endian length header followed by that many body bytes,
// echoed back verbatim. Not part of the framework's core test surface
// (spec.md §1 excludes example programs from scope) — a thin usage
// demonstration in the spirit of original_source's test_server.cpp.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"context"

	"github.com/nabbar/nettcp/config"
	"github.com/nabbar/nettcp/log"
	"github.com/nabbar/nettcp/session"
	tcp "github.com/nabbar/nettcp/server/tcp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9001", "listen address")
	flag.Parse()

	l := log.NewDefault("echo-server")

	handlers := session.Handlers{
		OnConnect: func(s *session.Session) {
			l.Info("session connected", "id", s.SessionID(), "remote", s.RemoteAddr())
		},
		OnClose: func(s *session.Session, err error) {
			l.Info("session closed", "id", s.SessionID(), "error", err)
		},
		OnHeaderLength: func() uint32 { return 4 },
		OnBodyLength: func(s *session.Session, header []byte) (int32, error) {
			return int32(binary.BigEndian.Uint32(header)), nil
		},
		OnMessage: func(s *session.Session, header, body []byte) {
			frame := make([]byte, 4+len(body))
			binary.BigEndian.PutUint32(frame, uint32(len(body)))
			copy(frame[4:], body)
			s.Send(frame)
		},
	}

	onAcceptFailed := func(err error) { l.Warn("accept failed", "error", err) }
	srv, err := tcp.New(nil, onAcceptFailed, handlers, config.Server{Address: *addr, PoolSize: 4}, l)
	if err != nil {
		fmt.Fprintln(os.Stderr, "echo-server:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	l.Info("listening", "addr", *addr)
	if err := srv.Listen(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "echo-server:", err)
		os.Exit(1)
	}
}
