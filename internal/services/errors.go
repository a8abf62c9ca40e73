// Package services defines the business logic for messages, notifications,
// and account removal. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Message-related errors.
var (
	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyBody is returned when a message is created or edited with an
	// empty body.
	ErrEmptyBody = errors.New("message body is empty")

	// ErrTooLong is returned when a message body exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message body too long")

	// ErrSelfMessage is returned when sender and receiver are the same user.
	ErrSelfMessage = errors.New("cannot send a message to yourself")

	// ErrParentNotFound is returned when a reply references a parent message
	// that does not exist.
	ErrParentNotFound = errors.New("parent message not found")

	// ErrNotParticipant is returned when a user attempts an operation on a
	// message they neither sent nor received.
	ErrNotParticipant = errors.New("not a participant of this message")

	// ErrNotSender is returned when a mutation is reserved to the original
	// sender (edit, delete) and someone else attempts it.
	ErrNotSender = errors.New("only the sender may modify this message")

	// ErrNotReceiver is returned when only the receiver may perform the
	// operation (marking read).
	ErrNotReceiver = errors.New("only the receiver may mark this message read")
)

// Notification-related errors.
var (
	// ErrNotificationNotFound indicates that the notification does not exist
	// or belongs to another user.
	ErrNotificationNotFound = errors.New("notification not found")
)
