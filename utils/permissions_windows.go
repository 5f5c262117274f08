//go:build windows

package utils

// SetUmask is a no-op on Windows; file modes are handled by ACLs.
func SetUmask(int) int {
	return 0
}
