package httprecorder

import (
	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// IgnoreHeaders is a cmp option that drops the named headers from a
// comparison of recorded requests.
func IgnoreHeaders(headers ...string) gocmp.Option {
	skip := headerSet(headers)
	return cmpopts.IgnoreMapEntries(func(h string, _ []string) bool {
		return skip[h]
	})
}

// OnlyHeaders is a cmp option that compares nothing but the named headers.
func OnlyHeaders(headers ...string) gocmp.Option {
	keep := headerSet(headers)
	return cmpopts.IgnoreMapEntries(func(h string, _ []string) bool {
		return !keep[h]
	})
}

func headerSet(headers []string) map[string]bool {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[h] = true
	}
	return set
}
