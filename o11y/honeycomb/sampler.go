package honeycomb

import (
	"fmt"
	"hash/crc32"
	"math"

	dynsampler "github.com/honeycombio/dynsampler-go"
)

// TraceSampler decides span by span whether to keep it, asking the
// dynsampler strategy for the rate recorded against the span's key.
type TraceSampler struct {
	// KeyFunc reduces an event's fields to the single string the sampling
	// strategy tracks rates against.
	KeyFunc func(map[string]interface{}) string

	Sampler dynsampler.Sampler
}

// Hook implements beeline.Config.SamplerHook.
func (s *TraceSampler) Hook(fields map[string]interface{}) (sample bool, rate int) {
	rate = s.Sampler.GetSampleRate(s.KeyFunc(fields))
	if keep(fmt.Sprintf("%v", fields["trace.trace_id"]), rate) {
		return true, rate
	}
	return false, 0
}

// keep hashes the determinant against the rate so a given trace ID is
// either kept or dropped consistently, the same scheme as beeline's
// deterministic sampler.
func keep(determinant string, rate int) bool {
	if rate == 1 {
		return true
	}

	threshold := math.MaxUint32 / uint32(rate) //nolint:gosec
	return crc32.ChecksumIEEE([]byte(determinant)) < threshold
}
