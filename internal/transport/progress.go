// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"io"
)

// readChunk is the buffer size progress is reported at.
const readChunk = 32 * 1024

// readAll reads r to the end, reporting the loaded ratio after every chunk when
// total is known. It stops early when ctx is done.
func readAll(ctx context.Context, r io.Reader, total int64, progress func(float64)) ([]byte, error) {
	var data []byte
	if total > 0 {
		data = make([]byte, 0, total)
	}
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		if n > 0 && total > 0 && progress != nil {
			progress(min(float64(len(data))/float64(total), 1))
		}
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
