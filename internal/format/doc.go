// Package format reads and writes the statevault binary containers.
//
// Vault file (56-byte header):
//
//	offset  size  field
//	0       7     magic "STVAULT"
//	7       1     version
//	8       4     PBKDF2 iterations, big-endian
//	12      32    salt
//	44      12    AES-GCM iv
//	56      n+16  ciphertext with authentication tag
//
// Manifest file (53-byte header):
//
//	0       4     magic "STMF"
//	4       1     version
//	5       4     PBKDF2 iterations, big-endian
//	9       32    salt
//	41      12    AES-GCM iv
//	53      n+16  ciphertext with authentication tag
//
// Byte 2 is 'V' for vaults and 'M' for manifests, so a file handed to the
// wrong parser is reported as a CrossFormatError instead of a plain format
// error.
package format
