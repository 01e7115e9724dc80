// Package types holds test-facing interfaces shared by the fixture helpers.
package types

// TestingTB is the subset of testing.TB the fixtures in this repo need.
// Depending on this rather than testing.TB itself lets the helpers run under
// other harnesses (ginkgo's GinkgoT satisfies it for instance).
type TestingTB interface {
	Cleanup(func())
	Fail()
	FailNow()
	Failed() bool
	Fatal(args ...interface{})
	Helper()
	Log(args ...interface{})
	Logf(format string, args ...interface{})
	Name() string
	Skip(args ...interface{})
}
