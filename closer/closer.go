// Package closer keeps errors from deferred Close calls.
package closer

import "io"

// ErrorHandler closes c and, when no earlier error is in flight, stores the
// close error in in. Use it where a lost Close error would hide a real
// problem, a partially flushed file for instance:
//
//	defer closer.ErrorHandler(f, &err)
func ErrorHandler(c io.Closer, in *error) {
	if cerr := c.Close(); *in == nil {
		*in = cerr
	}
}
