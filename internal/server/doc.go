// Package server hosts the Fiber HTTP service and the request middleware
// chain for the NuGet V3 feed. Every request gets an ID and a resolved
// external base URL before reaching a handler; handlers then combine the
// metadata index, the package store and the stream gate into protocol
// responses. Dependencies are injected through AppOptions so tests can run
// against isolated instances, and exports stay narrow on purpose.
package server
