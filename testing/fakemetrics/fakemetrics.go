// Package fakemetrics records metric calls for assertions in tests.
package fakemetrics

import (
	"fmt"
	"sync"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// MetricCall is one recorded metric emission.
type MetricCall struct {
	Metric   string
	Name     string
	Value    float64
	ValueInt int64
	Tags     []string
	Rate     float64
}

// CMPMetrics compares recorded calls ignoring ordering and small value
// differences, timers rarely measure the same millisecond twice.
var CMPMetrics = gocmp.Options{
	cmpopts.EquateApprox(0, 10),
	cmpopts.SortSlices(func(x, y MetricCall) bool {
		const key = "%s|%s|%s"
		return fmt.Sprintf(key, x.Metric, x.Name, x.Tags) <
			fmt.Sprintf(key, y.Metric, y.Name, y.Tags)
	}),
}

// Provider is a metrics provider that keeps every call it sees. The zero
// value is ready to use.
type Provider struct {
	mu    sync.RWMutex
	calls []MetricCall
}

// Calls returns a copy of everything recorded so far.
func (p *Provider) Calls() []MetricCall {
	p.mu.RLock()
	defer p.mu.RUnlock()

	calls := make([]MetricCall, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// Reset drops the recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = nil
}

func (p *Provider) TimeInMilliseconds(name string, value float64, tags []string, rate float64) error {
	p.add(MetricCall{Metric: "timer", Name: name, Value: value, Tags: tags, Rate: rate})
	return nil
}

func (p *Provider) Gauge(name string, value float64, tags []string, rate float64) error {
	p.add(MetricCall{Metric: "gauge", Name: name, Value: value, Tags: tags, Rate: rate})
	return nil
}

func (p *Provider) Count(name string, value int64, tags []string, rate float64) error {
	p.add(MetricCall{Metric: "count", Name: name, ValueInt: value, Tags: tags, Rate: rate})
	return nil
}

func (p *Provider) Histogram(name string, value float64, tags []string, rate float64) error {
	p.add(MetricCall{Metric: "histogram", Name: name, Value: value, Tags: tags, Rate: rate})
	return nil
}

func (p *Provider) Close() error {
	return nil
}

func (p *Provider) add(call MetricCall) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, call)
}
