// SPDX-License-Identifier: MPL-2.0

// Package testutil provides in-memory collaborators for loader tests: a
// scripted transport (FakeTransport), an executor that records what it ran
// (RecordingExecutor), a map-backed cache and module scope. AcquireContainerSlot
// limits how many integration tests run containers at once.
package testutil
