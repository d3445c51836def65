// Package heap implements the row-level view of a table: the binary row
// codec and the HeapTable CRUD and scan API over a heap file.
package heap

import (
	"encoding/binary"
	"fmt"
	"math"

	"ocelot/internal/core"
	"ocelot/internal/storage"
)

// Marshal encodes a full row into one record, column by column in schema
// order: INT as 4 bytes little-endian signed, TEXT as a 2-byte unsigned
// length followed by the bytes, BOOLEAN as one byte.
func Marshal(schema core.Schema, row core.Row) ([]byte, error) {
	buf := make([]byte, 0, 64)
	for _, col := range schema {
		v := row[col.Name]
		switch col.Type {
		case core.TypeInt:
			if len(buf)+4 > storage.BlockSize-4 {
				return nil, fmt.Errorf("marshal %s: %w", col.Name, core.ErrRowTooLarge)
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Int))
		case core.TypeText:
			if len(v.Text) > math.MaxUint16 {
				return nil, fmt.Errorf("marshal %s: text field too long: %w", col.Name, core.ErrRowTooLarge)
			}
			if len(buf)+2+len(v.Text) > storage.BlockSize {
				return nil, fmt.Errorf("marshal %s: %w", col.Name, core.ErrRowTooLarge)
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(len(v.Text)))
			buf = append(buf, v.Text...)
		case core.TypeBoolean:
			if len(buf)+1 > storage.BlockSize-1 {
				return nil, fmt.Errorf("marshal %s: %w", col.Name, core.ErrRowTooLarge)
			}
			if v.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		default:
			return nil, fmt.Errorf("marshal %s: unrecognized type %s", col.Name, col.Type)
		}
	}
	return buf, nil
}

// Unmarshal decodes one record back into a row, reading widths from the
// same schema and tagging each value with its column type.
func Unmarshal(schema core.Schema, data []byte) (core.Row, error) {
	row := make(core.Row, len(schema))
	offset := 0
	for _, col := range schema {
		switch col.Type {
		case core.TypeInt:
			if offset+4 > len(data) {
				return nil, fmt.Errorf("unmarshal %s: record truncated", col.Name)
			}
			n := int32(binary.LittleEndian.Uint32(data[offset:]))
			row[col.Name] = core.IntValue(n)
			offset += 4
		case core.TypeText:
			if offset+2 > len(data) {
				return nil, fmt.Errorf("unmarshal %s: record truncated", col.Name)
			}
			size := int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
			if offset+size > len(data) {
				return nil, fmt.Errorf("unmarshal %s: record truncated", col.Name)
			}
			row[col.Name] = core.TextValue(string(data[offset : offset+size]))
			offset += size
		case core.TypeBoolean:
			if offset+1 > len(data) {
				return nil, fmt.Errorf("unmarshal %s: record truncated", col.Name)
			}
			row[col.Name] = core.BoolValue(data[offset] != 0)
			offset++
		default:
			return nil, fmt.Errorf("unmarshal %s: unrecognized type %s", col.Name, col.Type)
		}
	}
	return row, nil
}
