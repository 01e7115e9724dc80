package honeycomb

import (
	"fmt"
	"strings"
	"time"

	"github.com/nostrkit/relayd/o11y"
)

// metricKey is the span field the metrics list is smuggled out on. It never
// reaches the trace output, the send hooks strip it.
const metricKey = "__MAGIC_METRIC_KEY__"

// sendSpanMetrics returns the hook that turns metrics recorded on a span into
// calls on the metrics provider, removing the stashed list from the fields.
func sendSpanMetrics(mp o11y.MetricsProvider) func(map[string]interface{}) {
	if mp == nil {
		// nowhere to send them, just keep the magic field out of the trace
		return func(fields map[string]interface{}) {
			delete(fields, metricKey)
		}
	}

	return func(fields map[string]interface{}) {
		errorCountMetrics(mp, fields)

		metrics, ok := fields[metricKey].([]o11y.Metric)
		if !ok {
			return
		}
		delete(fields, metricKey)
		for _, m := range metrics {
			tags := tagsFromFields(m.TagFields, fields)
			switch m.Type {
			case o11y.MetricTimer:
				val, ok := lookupField(m.Field, fields)
				if !ok {
					continue
				}
				ms, ok := asMillis(val)
				if !ok {
					panic(m.Field + " can not be coerced to milliseconds")
				}
				_ = mp.TimeInMilliseconds(m.Name, ms, tags, 1)
			case o11y.MetricCount:
				var n int64 = 1
				if m.Field != "" {
					val, ok := lookupField(m.Field, fields)
					if !ok {
						continue
					}
					n, ok = asInt64(val)
					if !ok {
						panic(m.Field + " can not be coerced to int")
					}
				}
				if m.FixedTag != nil {
					tags = append(tags, fmtTag(m.FixedTag.Name, m.FixedTag.Value))
				}
				_ = mp.Count(m.Name, n, tags, 1)
			case o11y.MetricGauge:
				val, ok := lookupField(m.Field, fields)
				if !ok {
					continue
				}
				f, ok := asFloat64(val)
				if !ok {
					panic(m.Field + " can not be coerced to float")
				}
				_ = mp.Gauge(m.Name, f, tags, 1)
			}
		}
	}
}

// errorCountMetrics emits the standard failure, error and warning counts that
// every span gets without any explicit RecordMetric call.
func errorCountMetrics(mp o11y.MetricsProvider, fields map[string]interface{}) {
	if class := classifyFailure(fields); class != "" {
		_ = mp.Count("failure", 1, []string{fmtTag("class", class)}, 1)
	}
	tag := []string{fmtTag("type", "o11y")}
	if _, ok := fields["error"]; ok {
		_ = mp.Count("error", 1, tag, 1)
	}
	if _, ok := fields["warning"]; ok {
		_ = mp.Count("warning", 1, tag, 1)
	}
}

// classifyFailure looks for the first field suffixed _error and copies its
// prefix into a failure field, returning the prefix. The _error field itself
// is left in place so the detail is not lost. An existing failure field wins.
func classifyFailure(fields map[string]interface{}) string {
	if _, ok := fields["failure"]; ok {
		return ""
	}
	for k := range fields {
		class := strings.TrimSuffix(k, "_error")
		if class != k {
			fields["failure"] = class
			return class
		}
	}
	return ""
}

func tagsFromFields(names []string, fields map[string]interface{}) []string {
	tags := make([]string, 0, len(names))
	for _, name := range names {
		if val, ok := lookupField(name, fields); ok {
			tags = append(tags, fmtTag(name, val))
		}
	}
	return tags
}

func lookupField(name string, fields map[string]interface{}) (interface{}, bool) {
	val, ok := fields[name]
	if !ok {
		// fields added via AddField carry honeycomb's app. prefix
		val, ok = fields["app."+name]
	}
	return val, ok
}

func asInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func asFloat64(val interface{}) (float64, bool) {
	if f, ok := val.(float64); ok {
		return f, true
	}
	if i, ok := asInt64(val); ok {
		return float64(i), true
	}
	return 0, false
}

func asMillis(val interface{}) (float64, bool) {
	if f, ok := asFloat64(val); ok {
		return f, true
	}
	d, ok := val.(time.Duration)
	if !ok {
		p, ok := val.(*time.Duration)
		if !ok {
			return 0, false
		}
		d = *p
	}
	return float64(d.Milliseconds()), true
}

func fmtTag(name string, val interface{}) string {
	return fmt.Sprintf("%s:%v", name, val)
}
