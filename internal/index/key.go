package index

import (
	"encoding/binary"
	"fmt"

	"ocelot/internal/core"
)

// keyTuple is the projection of a row onto the index's key columns, in key
// column order. Comparison is strict lexicographic left-to-right; INT
// fields compare numerically, TEXT fields byte-wise, BOOLEAN false first.
type keyTuple []core.Value

func (k keyTuple) compare(other keyTuple) int {
	for i := range k {
		switch {
		case k[i].Less(other[i]):
			return -1
		case other[i].Less(k[i]):
			return 1
		}
	}
	return 0
}

func (k keyTuple) equal(other keyTuple) bool {
	return k.compare(other) == 0
}

// encodeKey serializes a key tuple with the same widths as the row codec:
// INT as 4 bytes little-endian, TEXT as 2-byte length plus bytes, BOOLEAN
// as one byte.
func encodeKey(key keyTuple) []byte {
	buf := make([]byte, 0, 16)
	for _, v := range key {
		switch v.Type {
		case core.TypeInt:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Int))
		case core.TypeText:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(len(v.Text)))
			buf = append(buf, v.Text...)
		case core.TypeBoolean:
			if v.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	return buf
}

// decodeKey reads a key tuple back per the profile, returning the bytes
// consumed.
func decodeKey(profile []core.DataType, data []byte) (keyTuple, int, error) {
	key := make(keyTuple, 0, len(profile))
	offset := 0
	for _, dt := range profile {
		switch dt {
		case core.TypeInt:
			if offset+4 > len(data) {
				return nil, 0, fmt.Errorf("key truncated at INT field")
			}
			key = append(key, core.IntValue(int32(binary.LittleEndian.Uint32(data[offset:]))))
			offset += 4
		case core.TypeText:
			if offset+2 > len(data) {
				return nil, 0, fmt.Errorf("key truncated at TEXT length")
			}
			size := int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
			if offset+size > len(data) {
				return nil, 0, fmt.Errorf("key truncated at TEXT field")
			}
			key = append(key, core.TextValue(string(data[offset:offset+size])))
			offset += size
		case core.TypeBoolean:
			if offset+1 > len(data) {
				return nil, 0, fmt.Errorf("key truncated at BOOLEAN field")
			}
			key = append(key, core.BoolValue(data[offset] != 0))
			offset++
		default:
			return nil, 0, fmt.Errorf("unrecognized key type %s", dt)
		}
	}
	return key, offset, nil
}
