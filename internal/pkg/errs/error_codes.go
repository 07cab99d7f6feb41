/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the server
and in the error events and HTTP responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room and Session Errors
const (
	// ErrRoomNotFound indicates that the referenced room id does not exist.
	ErrRoomNotFound = 2103

	// ErrMessageContentTooLong indicates that a chat message exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMalformedEvent indicates that a socket event payload is missing required fields or has invalid values.
	ErrMalformedEvent = 2301

	// ErrUnsupportedEvent indicates that a socket event type is not known to the server.
	ErrUnsupportedEvent = 2302
)

// 24xx: Map Image Errors
const (
	// ErrFileSizeTooLarge indicates that a map image exceeds the maximum upload size.
	ErrFileSizeTooLarge = 2401

	// ErrFileTypeNotAllowed indicates that a map image has a disallowed MIME type or extension.
	ErrFileTypeNotAllowed = 2402

	// ErrMapKeyInvalid indicates that a map object key is not scoped to the requested room.
	ErrMapKeyInvalid = 2403

	// ErrMapNotFound indicates that the referenced map image does not exist in storage.
	ErrMapNotFound = 2404
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the object storage backend returned an error.
	ErrFileStorageFailed = 5001

	// ErrFileStorageUnavailable indicates that object storage is not configured on this server.
	ErrFileStorageUnavailable = 5002
)
