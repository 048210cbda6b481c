// Package postgres provides PostgreSQL implementations of the store interfaces
// for tasks and users, the embedded goose migrations that create their schema,
// and translation of driver errors into store errors.
package postgres
