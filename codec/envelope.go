package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/docluster/internal/hash"
)

// Envelope layout (little endian):
//
//	[4]  magic "DCR1"
//	[1]  compression
//	[1]  codec name length n
//	[n]  codec name
//	[4]  uncompressed payload size
//	[4]  CRC32C of the uncompressed payload
//	[..] payload
var magic = [4]byte{'D', 'C', 'R', '1'}

const fixedHeaderSize = 4 + 1 + 1 + 4 + 4

var (
	// ErrCorrupt is returned when an envelope is truncated or its checksum
	// does not match.
	ErrCorrupt = errors.New("codec: corrupt envelope")

	// ErrUnknownCodec is returned when an envelope names a codec this build
	// does not know.
	ErrUnknownCodec = errors.New("codec: unknown codec")
)

// Envelope encodes values with a codec and compression and decodes any
// envelope regardless of the codec and compression it was written with.
type Envelope struct {
	Codec       Codec
	Compression Compression
}

// Marshal encodes v into a self-describing envelope.
func (e Envelope) Marshal(v any) ([]byte, error) {
	c := e.Codec
	if c == nil {
		c = Default
	}
	name := c.Name()
	if len(name) > math.MaxUint8 {
		return nil, fmt.Errorf("codec: name %q too long", name)
	}

	payload, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", name, err)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("codec: payload of %d bytes too large", len(payload))
	}
	body, applied, err := compress(payload, e.Compression)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, fixedHeaderSize+len(name)+len(body))
	out = append(out, magic[:]...)
	out = append(out, byte(applied), byte(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = binary.LittleEndian.AppendUint32(out, hash.CRC32C(payload))
	return append(out, body...), nil
}

// Unmarshal decodes an envelope into v.
func (Envelope) Unmarshal(data []byte, v any) error {
	h, err := parseHeader(data)
	if err != nil {
		return err
	}
	payload, err := decompress(data[h.bodyOffset:], h.compression, h.size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if hash.CRC32C(payload) != h.checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return h.codec.Unmarshal(payload, v)
}

// Inspect returns the codec name and compression of an envelope without
// decoding it.
func Inspect(data []byte) (codecName string, c Compression, err error) {
	h, err := parseHeader(data)
	if err != nil {
		return "", 0, err
	}
	return h.codec.Name(), h.compression, nil
}

type header struct {
	codec       Codec
	compression Compression
	size        int
	checksum    uint32
	bodyOffset  int
}

func parseHeader(data []byte) (header, error) {
	var h header
	if len(data) < fixedHeaderSize || [4]byte(data[:4]) != magic {
		return h, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	h.compression = Compression(data[4])
	n := int(data[5])
	if len(data) < fixedHeaderSize+n {
		return h, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	name := string(data[6 : 6+n])
	c, ok := ByName(name)
	if !ok {
		return h, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	h.codec = c
	off := 6 + n
	h.size = int(binary.LittleEndian.Uint32(data[off:]))
	h.checksum = binary.LittleEndian.Uint32(data[off+4:])
	h.bodyOffset = off + 8
	return h, nil
}
