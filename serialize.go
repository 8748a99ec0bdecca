package gc60

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Serialization constants.
const (
	// serializeVersion is the current serialization format version.
	serializeVersion byte = 1

	// headerSize is the size of the serialization header in bytes.
	// Magic (4) + Version (1) + Compression (1) + Limit (8) + NumBlocks (8) +
	// Checksum (8) + PayloadLen (8) = 38 bytes
	headerSize = 38
)

var magic = [4]byte{'G', 'C', '6', '0'}

// MarshalBinary serializes the sieved bitset without compression.
func (e *Engine) MarshalBinary() ([]byte, error) {
	return e.Encode(CompressionNone)
}

// Encode serializes the sieved bitset. The serialized format is:
//   - Magic (4 bytes): "GC60"
//   - Version (1 byte): serialization format version
//   - Compression (1 byte): how the payload is stored
//   - Limit (8 bytes): search bound (little-endian uint64)
//   - NumBlocks (8 bytes): number of blocks (little-endian uint64)
//   - Checksum (8 bytes): xxh3 of the raw payload (little-endian uint64)
//   - PayloadLen (8 bytes): stored payload length (little-endian uint64)
//   - Payload: the blocks as little-endian uint16s in block order, compressed
//     if requested
//
// If the requested compression does not shrink the payload it is stored raw.
func (e *Engine) Encode(c Compression) ([]byte, error) {
	if !e.sieved {
		return nil, ErrNotSieved
	}

	raw := e.bits.words()
	payload, used, err := compressPayload(raw, c)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize+len(payload))
	copy(buf[0:4], magic[:])
	buf[4] = serializeVersion
	buf[5] = byte(used)
	binary.LittleEndian.PutUint64(buf[6:14], e.limit)
	binary.LittleEndian.PutUint64(buf[14:22], e.numBlocks)
	binary.LittleEndian.PutUint64(buf[22:30], checksum(raw))
	binary.LittleEndian.PutUint64(buf[30:38], uint64(len(payload)))
	copy(buf[headerSize:], payload)

	return buf, nil
}

// UnmarshalBinary deserializes an engine from data produced by Encode.
// The hit database is rebuilt; the bitset comes from data and is treated as
// sieved. Options apply as for New.
func UnmarshalBinary(data []byte, opts ...Option) (*Engine, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: data too short (got %d bytes, need at least %d)", ErrInvalidData, len(data), headerSize)
	}
	if [4]byte(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidData, data[0:4])
	}

	version := data[4]
	if version != serializeVersion {
		return nil, fmt.Errorf("%w: got version %d, expected %d", ErrUnsupportedVersion, version, serializeVersion)
	}

	c := Compression(data[5])
	limit := binary.LittleEndian.Uint64(data[6:14])
	numBlocks := binary.LittleEndian.Uint64(data[14:22])
	sum := binary.LittleEndian.Uint64(data[22:30])
	payloadLen := binary.LittleEndian.Uint64(data[30:38])

	if limit == 0 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit %d out of range", ErrInvalidData, limit)
	}
	if numBlocks != NumBlocks(limit) {
		return nil, fmt.Errorf("%w: %d blocks for limit %d, expected %d", ErrInvalidData, numBlocks, limit, NumBlocks(limit))
	}
	if uint64(len(data)-headerSize) != payloadLen {
		return nil, fmt.Errorf("%w: data length mismatch (got %d payload bytes, expected %d)", ErrInvalidData, len(data)-headerSize, payloadLen)
	}
	switch c {
	case CompressionNone:
		if payloadLen != numBlocks*BlockBytes {
			return nil, fmt.Errorf("%w: raw payload of %d bytes, expected %d", ErrInvalidData, payloadLen, numBlocks*BlockBytes)
		}
	case CompressionLZ4, CompressionZstd:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, uint8(c))
	}

	// reserve and allocate through New before touching the payload, so a
	// forged header cannot allocate past the memory budget
	e, err := New(limit, opts...)
	if err != nil {
		return nil, err
	}
	view := e.bits.byteView()
	if err := decompressInto(view, data[headerSize:], c); err != nil {
		e.Close()
		return nil, err
	}
	if got := checksum(view); got != sum {
		e.Close()
		return nil, fmt.Errorf("%w: got %016x, expected %016x", ErrChecksumMismatch, got, sum)
	}
	e.bits.fromLittleEndian(view)
	e.sieved = true
	return e, nil
}

// words returns the blocks as little-endian uint16s in block order.
func (b *Bitset) words() []byte {
	buf := make([]byte, len(b.blocks)*BlockBytes)
	for i, m := range b.blocks {
		binary.LittleEndian.PutUint16(buf[i*BlockBytes:], m)
	}
	return buf
}

// byteView returns the memory of the blocks as bytes, without copying.
func (b *Bitset) byteView() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.blocks[0])), len(b.blocks)*BlockBytes)
}

// fromLittleEndian reinterprets the blocks, whose memory holds view, as
// little-endian uint16s. It is a no-op on little-endian hosts.
func (b *Bitset) fromLittleEndian(view []byte) {
	for i := range b.blocks {
		b.blocks[i] = binary.LittleEndian.Uint16(view[i*BlockBytes:])
	}
}
