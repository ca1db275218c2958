// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 errors after which ReadDirectoryChangesW cannot continue.
const (
	errTooManyOpenFiles = syscall.Errno(4)
	errInvalidHandle    = syscall.Errno(6)
	errNotEnoughMemory  = syscall.Errno(8)
)

// exhaustionHint names the limit behind err when Windows can no longer watch
// the tree. Such errors stop the watcher; everything else is logged.
func exhaustionHint(err error) (string, bool) {
	switch {
	case errors.Is(err, errTooManyOpenFiles):
		return "Too many handles are open; watch a smaller directory", true
	case errors.Is(err, errInvalidHandle):
		return "A watched directory was removed; restart corext load --watch", true
	case errors.Is(err, errNotEnoughMemory):
		return "The notification buffer could not be allocated; free memory and retry", true
	}
	return "", false
}
