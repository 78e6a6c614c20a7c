// Package services defines the business logic for applications, chats, and
// messages. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrApplicationNotFound indicates that no application exists for the
	// presented token. It is surfaced before any counter or queue side
	// effect occurs.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrChatNotFound indicates that the requested chat number does not
	// exist under the application. Like ErrApplicationNotFound, it is
	// checked before any allocation happens.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyName is returned when an application is created or renamed
	// with a blank name.
	ErrEmptyName = errors.New("name is empty")

	// ErrEmptyBody is returned when a message allocation request carries an
	// empty body.
	ErrEmptyBody = errors.New("body is empty")

	// ErrBodyTooLong is returned when a message body exceeds the configured
	// maximum length.
	ErrBodyTooLong = errors.New("body too long")
)
