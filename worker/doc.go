/*
Package worker runs a service worker loop with observability and back-off for no work found.

It drives the system package's metric reporting loop, and can be used for any regular
background work a service needs to do.
*/
package worker
