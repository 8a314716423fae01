// Package queue serializes speech requests. Requests run one at a time on a
// single drain goroutine; high-priority requests jump to the front.
package queue
