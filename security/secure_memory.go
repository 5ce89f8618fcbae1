package security

import (
	"crypto/subtle"
	"runtime"
)

// SecureWipe overwrites data with zeros in a way intended to survive
// compiler dead-store elimination, for clearing key material and shared
// secrets once they are no longer needed.
func SecureWipe(data []byte) {
	if data == nil {
		return
	}
	zeros := make([]byte, len(data))
	subtle.ConstantTimeCopy(1, data, zeros)
	runtime.KeepAlive(data)
}
