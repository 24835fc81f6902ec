package norfs

import (
	"github.com/rs/zerolog"

	"github.com/outofforest/norfs/cache"
)

type config struct {
	logger   zerolog.Logger
	cache    bool
	pageSize int
	pages    int
}

func defaultConfig() config {
	return config{
		logger:   zerolog.Nop(),
		cache:    true,
		pageSize: cache.DefaultPageSize,
		pages:    cache.DefaultPages,
	}
}

// Option configures the storage.
type Option func(c *config)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithCache sets the geometry of the read cache.
func WithCache(pageSize, pages int) Option {
	return func(c *config) {
		c.cache = true
		c.pageSize = pageSize
		c.pages = pages
	}
}

// WithoutCache disables the read cache.
func WithoutCache() Option {
	return func(c *config) {
		c.cache = false
	}
}
