package options

const (
	// DefaultCapacity is the number of open handles the pool holds before
	// the reclaimer starts closing idle ones.
	DefaultCapacity int = 500

	// DefaultLimitedCapacity keeps the capacity a soft threshold.
	DefaultLimitedCapacity bool = false
)

var defaultOptions = Options{
	Capacity:        DefaultCapacity,
	LimitedCapacity: DefaultLimitedCapacity,
}

func DefaultOptions() Options {
	return defaultOptions
}
