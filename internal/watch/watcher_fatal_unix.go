// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// exhaustionHint names the limit behind err when the kernel ran out of watch
// resources. Such errors stop the watcher; everything else is logged.
func exhaustionHint(err error) (string, bool) {
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return "Raise fs.inotify.max_user_watches", true
	case errors.Is(err, syscall.EMFILE):
		return "Raise the open file limit (ulimit -n) or fs.inotify.max_user_instances", true
	case errors.Is(err, syscall.ENFILE):
		return "The system file table is full; close other programs or raise fs.file-max", true
	}
	return "", false
}
