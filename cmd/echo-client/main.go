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

// Command echo-client dials echo-server, sends one framed message per
// line read from stdin, and prints the echoed reply. A thin usage
// demonstration, not part of the framework's core test surface.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nabbar/nettcp/config"
	"github.com/nabbar/nettcp/log"
	"github.com/nabbar/nettcp/session"
	tcp "github.com/nabbar/nettcp/client/tcp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9001", "server address")
	flag.Parse()

	l := log.NewDefault("echo-client")
	c := tcp.New(config.Client{}, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	for !c.IsRunning() {
		time.Sleep(time.Millisecond)
	}

	connected := make(chan struct{})
	replies := make(chan []byte, 1)

	sess, err := c.Connect(*addr, session.Handlers{
		OnConnect: func(s *session.Session) { close(connected) },
		OnConnectFailure: func(s *session.Session, err error) {
			fmt.Fprintln(os.Stderr, "echo-client: connect failed:", err)
			os.Exit(1)
		},
		OnHeaderLength: func() uint32 { return 4 },
		OnBodyLength: func(s *session.Session, header []byte) (int32, error) {
			return int32(binary.BigEndian.Uint32(header)), nil
		},
		OnMessage: func(s *session.Session, header, body []byte) {
			replies <- append([]byte(nil), body...)
		},
	}, 0, 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "echo-client:", err)
		os.Exit(1)
	}

	<-connected

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		frame := make([]byte, 4+len(line))
		binary.BigEndian.PutUint32(frame, uint32(len(line)))
		copy(frame[4:], line)
		sess.Send(frame)

		reply := <-replies
		fmt.Println(string(reply))
	}
}
