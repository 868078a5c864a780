// Package audit defines the audit event model, sink implementations, and
// the asynchronous dispatcher that decouples event emission from the
// request path. A full dispatcher buffer either blocks the caller or drops
// the event, depending on configuration; drops are counted, never silent.
package audit
