/*
Package system ties the lifecycle of a service's moving parts together.

Most services in this repo run a few things side by side: HTTP servers,
worker loops, a metrics reporter. They all need starting, a shared shutdown
signal and an orderly cleanup afterwards. System collects the pieces and
runs them as one errgroup.

The runnable example shows the intended wiring.
*/
package system
