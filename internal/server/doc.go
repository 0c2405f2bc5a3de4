// Package server provides the local relay server started by "cryptolab serve".
//
// The relay submits jobs on behalf of a browser or script, polls them with
// one tracker per job kind, and republishes every snapshot:
//
//   - REST: current snapshots at "/api/tasks", submission at "/api/jobs/{slot}"
//   - Server-Sent Events: snapshot stream at "/api/sse"
//   - Feature labels at "/api/features/{namespace}/{key}"
//   - Prometheus metrics at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
