// SPDX-License-Identifier: MPL-2.0

// Package engine provides module.Executor implementations for the script
// types corext loads: JavaScript evaluated with goja and POSIX shell evaluated
// with mvdan.cc/sh. A Mux routes each module to the engine registered for its
// resource type.
package engine
