// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the corext command line.
//
// The commands wire the loader stack from configuration: transports, the
// persistent cache, script engines, metrics and the bootstrap sequencer.
package cmd
