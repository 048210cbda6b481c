// Package domain contains the core business entities of the task board: users,
// verified identities, tasks and their status lifecycle. It is independent of
// any specific infrastructure or delivery mechanism.
package domain
