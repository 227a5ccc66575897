// Package options provides configuration for the handle pool.
package options

import (
	"github.com/iamNilotpal/rrdpool/pkg/rrd"
)

// Options defines the configurable parameters of a pool instance.
type Options struct {
	// Capacity is the number of open handles at which the background
	// reclaimer starts closing idle ones.
	//
	// Default: 500
	Capacity int `json:"capacity"`

	// LimitedCapacity turns the capacity into a hard ceiling: requests
	// for unseen paths block instead of exceeding it. Useful to stay
	// under OS file descriptor limits.
	//
	// Default: false
	LimitedCapacity bool `json:"limitedCapacity"`

	// Factory overrides the process-wide default backend factory. Must
	// be file backed.
	Factory rrd.Factory `json:"-"`
}

type OptionFunc func(*Options)

// WithDefaultOptions applies the predefined default configuration.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := DefaultOptions()
		o.Capacity = opts.Capacity
		o.LimitedCapacity = opts.LimitedCapacity
		o.Factory = opts.Factory
	}
}

// WithCapacity sets the reclamation threshold. Non-positive values are
// ignored; use the pool's SetCapacity to force full reclamation at runtime.
func WithCapacity(capacity int) OptionFunc {
	return func(o *Options) {
		if capacity > 0 {
			o.Capacity = capacity
		}
	}
}

// WithLimitedCapacity makes the capacity a hard ceiling.
func WithLimitedCapacity(limited bool) OptionFunc {
	return func(o *Options) {
		o.LimitedCapacity = limited
	}
}

// WithFactory sets an explicit backend factory for the pool.
func WithFactory(factory rrd.Factory) OptionFunc {
	return func(o *Options) {
		if factory != nil {
			o.Factory = factory
		}
	}
}
