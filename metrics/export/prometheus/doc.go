// Package prometheus exposes goVerify engine metrics as a client_golang
// collector.
//
// [NewExporter] wraps a [goVerify.Engine]. Register it on any registry or
// mount [Exporter.Handler]. Counter names are goverify_*_total; the single
// histogram is goverify_submit_latency_seconds.
//
// # What this package must NOT do
//
//   - Mutate engine state.
package prometheus
