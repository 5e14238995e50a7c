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

// Package config provides viper-decodable Server and Client configuration
// structs, grounded on the field names nabbar/golib/socket/config's
// test-revealed sckcfg.Server shape (Network, Address, ConIdleTimeout)
// and extended with the fields this framework actually consumes (pool
// sizing, heartbeat, rate limit). TLS fields are intentionally not
// carried: TLS is a Non-goal of the framework this config feeds.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/nabbar/nettcp/duration"
)

// Server configures a server/tcp.Server.
type Server struct {
	Address string `mapstructure:"address"`

	// PoolSize is the number of Reactor goroutines backing accepted
	// sessions. Defaults to 1 if <= 0.
	PoolSize int `mapstructure:"pool_size"`
	// ReactorQueueDepth bounds each Reactor's task channel. Defaults to
	// 256 if <= 0.
	ReactorQueueDepth int `mapstructure:"reactor_queue_depth"`

	ConIdleTimeout duration.Duration `mapstructure:"con_idle_timeout"`

	HeartbeatInterval duration.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatPayload  string            `mapstructure:"heartbeat_payload"`

	SendRateLimit int64 `mapstructure:"send_rate_limit"`

	RecvBufferInitial int `mapstructure:"recv_buffer_initial"`
}

// Client configures a client/tcp.Client.
type Client struct {
	PoolSize          int               `mapstructure:"pool_size"`
	ReactorQueueDepth int               `mapstructure:"reactor_queue_depth"`
	ConIdleTimeout    duration.Duration `mapstructure:"con_idle_timeout"`

	ConnectDelay   duration.Duration `mapstructure:"connect_delay"`
	ConnectTimeout duration.Duration `mapstructure:"connect_timeout"`

	HeartbeatInterval duration.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatPayload  string            `mapstructure:"heartbeat_payload"`

	SendRateLimit int64 `mapstructure:"send_rate_limit"`

	RecvBufferInitial int `mapstructure:"recv_buffer_initial"`
}

// LoadServer decodes a Server from v at the given key prefix (e.g.
// "server"), applying defaults for zero-valued fields that require one.
// Follows the teacher's viper+mapstructure decode pattern (duration's
// ViperDecoderHook handles the duration.Duration fields).
func LoadServer(v *viper.Viper, key string) (Server, error) {
	var c Server
	if err := decode(v, key, &c); err != nil {
		return Server{}, err
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 1
	}
	if c.ReactorQueueDepth <= 0 {
		c.ReactorQueueDepth = 256
	}
	if c.RecvBufferInitial <= 0 {
		c.RecvBufferInitial = 4096
	}
	return c, nil
}

// LoadClient decodes a Client from v at the given key prefix.
func LoadClient(v *viper.Viper, key string) (Client, error) {
	var c Client
	if err := decode(v, key, &c); err != nil {
		return Client{}, err
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 1
	}
	if c.ReactorQueueDepth <= 0 {
		c.ReactorQueueDepth = 256
	}
	if c.RecvBufferInitial <= 0 {
		c.RecvBufferInitial = 4096
	}
	return c, nil
}

func decode(v *viper.Viper, key string, out interface{}) error {
	if v == nil {
		return fmt.Errorf("config: nil viper instance")
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       duration.ViperDecoderHook(),
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}

	var src interface{} = v.AllSettings()
	if key != "" {
		src = v.Sub(key)
		if src == nil {
			return nil
		}
		src = src.(*viper.Viper).AllSettings()
	}

	return dec.Decode(src)
}
