// Package manager coordinates the two external mlx_lm tools behind the
// HTTP API: the converter subprocess that produces artifacts and the
// per-artifact inference server subprocesses used for generation. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, Ready/Close.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, Runtime).
//   - errors.go: error types and helpers (IsInvalidRequest, IsModelNotFound, ...).
//   - convert.go: conversion glue around the external converter binary.
//   - diskfree_unix.go / diskfree_stub.go: free-disk preflight probe.
//   - runtime.go: spawn/cache/stop of inference server subprocesses.
//   - evict.go: LRU eviction when the runtime cache is full.
//   - admission.go: per-runtime queueing and generation admission.
//   - generate.go: generation glue; proxies the runtime's SSE stream as NDJSON.
//   - status.go: Status reporting for GET /status.
//   - events.go / eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: Prometheus collectors for conversions, spawns and generations.
//
// External packages should treat this package as the orchestration layer
// and use public methods only (NewWithConfig, Convert, Generate,
// ListArtifacts, Status, Ready, UnloadRuntimes, Close). Internal types
// are subject to change.
package manager
