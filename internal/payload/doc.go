// Package payload assembles and restores the plaintext documents sealed inside
// vault and manifest files.
//
// A VaultPayload carries application records as opaque strings keyed by
// record name. Which names may be exported, and which may be written back,
// is decided by a Registry: restoring a payload never writes a key the
// registry does not recognize.
//
// Image assets travel in a separate ImagePayload so that a failure there
// cannot affect the data restore. A Manifest is a small pointer to the
// latest vault object in a transport.
//
// Every decoded document is validated against a JSON schema before use.
package payload
