// Package hash holds the checksum shared by the result envelope and the
// object store uploads.
package hash

import (
	"encoding/base64"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// CRC32CBase64 returns the checksum in the big-endian base64 form object
// stores expect in checksum headers.
func CRC32CBase64(data []byte) string {
	sum := CRC32C(data)
	return base64.StdEncoding.EncodeToString([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
}
