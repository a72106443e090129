// Package notify carries pipeline notifications between stages.
//
// Two message types flow through it: DocumentCreated, emitted when a raw
// document lands in the object store, and JobCompletion, emitted by the
// text-extraction service when an asynchronous job finishes. Delivery is
// at-least-once, so every handler must tolerate duplicates.
//
// The notify/redis package implements Bus on Redis pub/sub.
package notify
