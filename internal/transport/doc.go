// Package transport moves sealed vault and manifest files between devices.
//
// A Transport stores opaque named objects. Dir keeps them in a local or
// mounted directory, confined with os.Root. S3 keeps them in an
// S3-compatible bucket through the MinIO client.
//
// Transports do not retry. A failed call is reported to the caller as is.
package transport
