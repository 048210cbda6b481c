// Package store defines the persistence contracts the task service depends on.
// Implementations live in internal/platform/postgres (production) and
// internal/store/memstore (in-memory, used for local runs and tests).
package store
