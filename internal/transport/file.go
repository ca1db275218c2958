// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/corext/corext/pkg/resource"
)

// File serves file:// URLs from the local filesystem. A missing file is reported
// as a 404 *resource.HTTPStatusError so callers handle it like a missing URL.
type File struct{}

// NewFile creates a file transport.
func NewFile() *File { return &File{} }

// Fetch implements resource.Transport.
func (File) Fetch(ctx context.Context, fr resource.FetchRequest, progress func(float64)) (*resource.Payload, error) {
	u, err := url.Parse(fr.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fr.URL, err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("%w %q for %s", ErrUnsupportedScheme, u.Scheme, fr.URL)
	}
	name := filepath.FromSlash(u.Path)

	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &resource.HTTPStatusError{URL: fr.URL, StatusCode: http.StatusNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, &resource.HTTPStatusError{URL: fr.URL, StatusCode: http.StatusNotFound}
	}

	data, err := readAll(ctx, f, info.Size(), progress)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	typ, _ := resource.TypeForExtension(path.Ext(u.Path))
	return &resource.Payload{Data: data, Type: typ, StatusCode: http.StatusOK}, nil
}
