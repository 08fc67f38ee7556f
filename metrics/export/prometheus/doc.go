// Package prometheus renders authcore metrics in Prometheus text
// exposition format.
//
// [NewExporter] accepts an [authcore.Engine] and exposes an
// [net/http.Handler] that serves every engine counter plus the audit
// pipeline health counters. Counter names are prefixed authcore_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
