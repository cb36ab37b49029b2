package app

import "lockbyte/internal/lockbyte"

// OperationFor picks the operation for a path given on its own, the way a
// file handed to the program by the desktop is treated: containers are
// decrypted, everything else is encrypted.
func OperationFor(path string) lockbyte.Operation {
	if lockbyte.IsContainerName(path) {
		return lockbyte.OpDecrypt
	}
	return lockbyte.OpEncrypt
}
