// Package hooks selects the platform implementation of the hook loader.
package hooks
