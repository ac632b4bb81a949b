package logging

import "github.com/google/uuid"

// GenerateRequestID generates a unique request ID for a connection or
// operation.
func GenerateRequestID() string {
	return uuid.NewString()
}
