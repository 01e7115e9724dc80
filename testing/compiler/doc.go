/*
Package compiler helps efficiently compile and cleanup your services in acceptance tests.

This is a small wrapper around the general releases/compiler. The binaries created from
this package are always stored in a temporary folder, removed by Cleanup.
*/
package compiler
