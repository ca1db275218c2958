// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"testing"
)

// ContainerParallelEnv caps how many tests may run containers at once.
const ContainerParallelEnv = "COREXT_TEST_CONTAINER_PARALLEL"

var containerSlots = sync.OnceValue(func() chan struct{} {
	n := min(runtime.GOMAXPROCS(0), 2)
	if v, err := strconv.Atoi(os.Getenv(ContainerParallelEnv)); err == nil && v > 0 {
		n = v
	}
	return make(chan struct{}, n)
})

// AcquireContainerSlot blocks until the test may start a container and frees
// the slot when the test ends.
func AcquireContainerSlot(t testing.TB) {
	t.Helper()
	slots := containerSlots()
	slots <- struct{}{}
	t.Cleanup(func() { <-slots })
}
