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

package errs_test

import (
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/nettcp/errs"
)

var _ = Describe("Errs", func() {
	Context("Wrap", func() {
		It("preserves the wrapped cause in the error message and Is chain", func() {
			cause := errors.New("boom")
			err := errs.Wrap(cause, errs.ErrTimedOut)

			Expect(errors.Is(err, errs.ErrTimedOut)).To(BeTrue())
			Expect(errs.GetCode(err)).To(Equal(errs.CodeTimedOut))
			Expect(err.Error()).To(ContainSubstring("boom"))
		})

		It("returns the sentinel unchanged when cause is nil", func() {
			err := errs.Wrap(nil, errs.ErrOperationAborted)
			Expect(err).To(Equal(errs.ErrOperationAborted))
		})
	})

	Context("FromRead", func() {
		It("maps io.EOF to ErrEOF", func() {
			err := errs.FromRead(io.EOF)
			Expect(errors.Is(err, errs.ErrEOF)).To(BeTrue())
		})

		It("maps any other read error to ErrTransport", func() {
			err := errs.FromRead(errors.New("reset"))
			Expect(errors.Is(err, errs.ErrTransport)).To(BeTrue())
		})
	})

	Context("Code strings", func() {
		It("renders known and unknown codes", func() {
			Expect(errs.CodeTimedOut.String()).To(Equal("timed out"))
			Expect(errs.CodeUnknown.String()).To(Equal("unknown error"))
		})
	})
})
