// Package models defines the data passed between the HTTP layer, the token
// lifecycle manager and the transfer pipeline.
package models

import "io"

// Destination holds the object-store coordinates of a single relay.
// Credentials come from the caller on every request and are never stored.
type Destination struct {
	// Endpoint is the S3-compatible API base URL.
	Endpoint string
	// Bucket is the target bucket name.
	Bucket string
	// ObjectKey is the key the payload is written to. It must not start with "/".
	ObjectKey string
	// AccessKeyID and SecretAccessKey sign the PUT request.
	AccessKeyID     string
	SecretAccessKey string
	// CustomDomain, when set, replaces endpoint/bucket in the public URL.
	CustomDomain string
}

// Upload is an inbound byte stream handed to the direct-relay path.
type Upload struct {
	Body        io.Reader
	FileName    string
	ContentType string
}

// TransferResult describes an object that was written successfully.
type TransferResult struct {
	PublicURL   string `json:"public_url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name,omitempty"`
}
