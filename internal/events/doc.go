// Package events carries task mutations from the service layer to the
// realtime channel.
//
// The primary components are:
// - TaskEvent: a task mutation with the full task snapshot and the acting identity
// - EventEmitter / EventHandler: decouple services from whoever consumes events
// - Dispatcher: pushes each event to its audience's open handles, best-effort
package events
