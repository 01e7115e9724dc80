package httpserver

import "context"

// MetricProducer is the server-side twin of system.MetricProducer. It lets a
// server hand its listener gauges to the metrics loop without this package
// importing the system package.
type MetricProducer interface {
	// MetricName is the name gauges from this producer are reported under.
	// (Name would be cleaner, but clashes in too many implementations.)
	MetricName() string

	// Gauges returns the current gauge values by name.
	Gauges(ctx context.Context) map[string]float64
}
