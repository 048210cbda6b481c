// Package service contains the application use cases: task mutations gated
// by the authorization policy, and user registration and lookup.
//
// Services depend on the store interfaces and on events.EventEmitter, never on
// concrete infrastructure. Expected conditions are returned as sentinel errors
// (ErrTaskNotFound, ErrForbidden) or domain.ValidationError; infrastructure
// failures are wrapped in TaskServiceError or UserServiceError, logged with
// their operation, and must not be shown to callers verbatim.
package service
