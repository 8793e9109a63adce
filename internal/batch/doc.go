// Package batch implements the task scheduling engine: a
// handler-pluggable queue that runs a bounded number of heterogeneous
// tasks concurrently, retries failed attempts with a fixed delay,
// persists its state across restarts, and reports aggregate progress.
package batch
