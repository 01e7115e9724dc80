/*
Package httpserver runs HTTP services with graceful shutdown and
connection-level gauges. The in-repo fakes (release hosts and the stub
relay's HTTP surface) are all served through it.
*/
package httpserver
