package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrLoopStopped = fmt.Errorf("event loop stopped")

	// Realtime delivery
	ErrSinkFull   = fmt.Errorf("connection send buffer full")
	ErrSinkClosed = fmt.Errorf("connection closed")

	// Client events
	ErrMissingIdentity = fmt.Errorf("identify payload has no id")
	ErrInvalidKind     = fmt.Errorf("identity kind must be admin or user")
	ErrIdentityToken   = fmt.Errorf("identify token does not match identity")
	ErrUnknownEvent    = fmt.Errorf("unknown event")
	ErrNotIdentified   = fmt.Errorf("connection has not identified")

	// Conversations and messages
	ErrNotAuthorized    = fmt.Errorf("not authorized for this conversation")
	ErrAccountSuspended = fmt.Errorf("account is suspended")
	ErrReceiverRequired = fmt.Errorf("receiver id is required")
	ErrReceiverNotFound = fmt.Errorf("receiver not found")
	ErrSenderNotFound   = fmt.Errorf("sender not found")
	ErrEmptyMessage     = fmt.Errorf("message, file or voice is required")
	ErrMessageTooLong   = fmt.Errorf("message is too long")
	ErrInvalidCursor    = fmt.Errorf("invalid cursor")
	ErrUploadTooLarge   = fmt.Errorf("upload exceeds the maximum size")
	ErrInvalidRequest   = fmt.Errorf("invalid request")

	// Accounts and auth
	ErrAccountNotFound    = fmt.Errorf("account not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrAdminRequired      = fmt.Errorf("admin access required")
)

// HTTPStatus maps a domain error to the status code returned by the REST layer.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrReceiverRequired),
		stderrors.Is(err, ErrEmptyMessage),
		stderrors.Is(err, ErrMessageTooLong),
		stderrors.Is(err, ErrInvalidCursor),
		stderrors.Is(err, ErrInvalidRequest),
		stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrInvalidCredentials),
		stderrors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrNotAuthorized),
		stderrors.Is(err, ErrAccountSuspended),
		stderrors.Is(err, ErrAdminRequired):
		return http.StatusForbidden
	case stderrors.Is(err, ErrReceiverNotFound),
		stderrors.Is(err, ErrSenderNotFound),
		stderrors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, ErrLoopStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MapToGRPCError converts a domain error into a gRPC status error.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return status.Error(codes.InvalidArgument, err.Error())
	case http.StatusUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	case http.StatusForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case http.StatusNotFound:
		return status.Error(codes.NotFound, err.Error())
	case http.StatusConflict:
		return status.Error(codes.AlreadyExists, err.Error())
	case http.StatusServiceUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
