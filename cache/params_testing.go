//go:build test

package cache

const (
	// DefaultPageSize is the number of bytes loaded into cache on miss.
	DefaultPageSize = 16

	// DefaultPages is the number of pages kept in cache.
	DefaultPages = 2
)
