// Package restore exports local state into vault files and restores vault
// files back into local state.
//
// A restore is driven through a Session:
//
//	Idle -> Decrypting -> DiffReady | DiffUnavailable | DecryptFailed
//	DiffReady | DiffUnavailable -> PreviewShown -> Applying -> Done
//	PreviewShown -> Cancelled -> Idle
//
// DecryptFailed keeps the file bytes so the caller can ask for the password
// again. When local and remote state are identical Decrypt returns
// ErrNoDifferences and the session goes back to Idle without a preview.
//
// An Orchestrator built without a Differ cannot show a selective preview.
// Its sessions land in DiffUnavailable and Confirm overwrites every
// recognized record with the remote value.
//
// One exclusive lock covers export snapshots, the read of local state
// during Decrypt, and Apply, so an export can never observe a half-applied
// restore.
package restore
