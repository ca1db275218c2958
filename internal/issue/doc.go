// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Loader errors are classified into issues, each carrying short suggestions for
// ActionableError output and a Markdown page rendered with glamour.
package issue
