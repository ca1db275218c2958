// SPDX-License-Identifier: MPL-2.0

// Package transport provides the resource.Transport implementations used by the
// CLI: HTTP(S) through net/http, local files for file:// URLs, and a Mux that
// routes by URL scheme.
package transport
