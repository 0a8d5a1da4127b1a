package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720, B.4.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))
	assert.Equal(t, "4waSgw==", CRC32CBase64([]byte("123456789")))
	assert.Equal(t, uint32(0), CRC32C(nil))
}
