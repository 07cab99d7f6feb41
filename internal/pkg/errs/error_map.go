/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, socket error events and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Session Errors
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},
	ErrMalformedEvent:        {Code: ErrMalformedEvent, Message: "Malformed %s event."},
	ErrUnsupportedEvent:      {Code: ErrUnsupportedEvent, Message: "Unsupported event %q."},

	// 24xx: Map Image Errors
	ErrFileSizeTooLarge:   {Code: ErrFileSizeTooLarge, Message: "Map image is too large (max %d MB).", Status: http.StatusRequestEntityTooLarge},
	ErrFileTypeNotAllowed: {Code: ErrFileTypeNotAllowed, Message: "Map image type is not allowed.", Status: http.StatusBadRequest},
	ErrMapKeyInvalid:      {Code: ErrMapKeyInvalid, Message: "Invalid map reference.", Status: http.StatusForbidden},
	ErrMapNotFound:        {Code: ErrMapNotFound, Message: "Map image not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown:                {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed:      {Code: ErrFileStorageFailed, Message: "Map upload failed. Please try again.", Status: http.StatusBadGateway},
	ErrFileStorageUnavailable: {Code: ErrFileStorageUnavailable, Message: "Map uploads are not enabled on this server.", Status: http.StatusServiceUnavailable},
}
