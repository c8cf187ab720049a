package common

const (
	// ServiceName is reported by the health endpoint and in logs.
	ServiceName = "r2-uploader"

	// AuthorizationHeaderName carries the bearer token on inbound requests.
	AuthorizationHeaderName = "Authorization"

	// PermanentDays is the sentinel day count meaning "never expires".
	PermanentDays = -99

	// DefaultContentType is used when neither the source nor the filename
	// tells us anything better.
	DefaultContentType = "application/octet-stream"

	// DefaultMaxFileSize is the process-wide transfer limit (200 MiB).
	DefaultMaxFileSize int64 = 200 << 20
)
