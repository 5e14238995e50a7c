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

// Package duration provides a config-friendly time.Duration wrapper,
// trimmed from nabbar/golib/duration (days-notation, big-integer range,
// and the PID-controller helpers are dropped — this framework only needs
// second-granularity timers for connect delay/timeout, idle-read timeout,
// heartbeat interval, and the rate-limit window).
package duration

import (
	"strings"
	"time"
)

// Duration wraps time.Duration so it can decode from viper/mapstructure
// config sources as a Go duration string ("30s"), matching the shape
// nabbar/golib/socket/config uses for ConIdleTimeout. ViperDecoderHook
// converts strings only; an integer value decodes as a raw nanosecond
// count.
type Duration time.Duration

// Parse parses a Go duration string ("5s", "1m30s", ...).
func Parse(s string) (Duration, error) {
	s = strings.Trim(s, `"'`)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return Duration(d), nil
}

// Seconds returns a Duration of i seconds.
func Seconds(i int64) Duration {
	return Duration(time.Duration(i) * time.Second)
}

// Time returns the underlying time.Duration.
func (d Duration) Time() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer and encoding.TextMarshaler's textual form.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// IsZero reports whether the duration is exactly zero, the sentinel this
// framework uses for "disabled" (no delay, no timeout, no heartbeat, no
// rate limit).
func (d Duration) IsZero() bool {
	return d == 0
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
