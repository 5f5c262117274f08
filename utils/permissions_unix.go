//go:build !windows

package utils

import "golang.org/x/sys/unix"

// SetUmask sets the process umask and returns the previous value.
func SetUmask(mask int) int {
	return unix.Umask(mask)
}
