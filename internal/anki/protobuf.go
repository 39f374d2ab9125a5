package anki

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Minimal protobuf wire-format reader, just enough for the modern media
// manifest. Anki 2.1.50+ writes the manifest as a MediaEntries message:
//
//	message MediaEntries {
//	  repeated MediaEntry entries = 1;
//	}
//	message MediaEntry {
//	  string name   = 1;
//	  uint32 size   = 2;
//	  bytes  sha1   = 3;
//	}
//
// Entries are ordered; entry i describes the archive member named
// strconv.Itoa(i).

const (
	wireVarint = 0
	wireI64    = 1
	wireLen    = 2
	wireI32    = 5
)

// ReadUvarint decodes one base-128 varint starting at *pos and advances
// *pos past it.
func ReadUvarint(buf []byte, pos *int) (uint32, error) {
	var value uint32
	var shift uint
	for {
		if *pos >= len(buf) {
			return 0, ErrTruncatedInput
		}
		b := buf[*pos]
		*pos++
		value |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift >= 32 {
			return 0, fmt.Errorf("%w: varint overflows uint32", ErrTruncatedInput)
		}
	}
}

// SkipField advances *pos past one value of the given wire type.
func SkipField(buf []byte, pos *int, wireType uint32) error {
	switch wireType {
	case wireVarint:
		_, err := ReadUvarint(buf, pos)
		return err
	case wireI64:
		return advance(buf, pos, 8)
	case wireLen:
		n, err := ReadUvarint(buf, pos)
		if err != nil {
			return err
		}
		return advance(buf, pos, int(n))
	case wireI32:
		return advance(buf, pos, 4)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownWireType, wireType)
	}
}

func advance(buf []byte, pos *int, n int) error {
	if n < 0 || *pos+n > len(buf) {
		return ErrTruncatedInput
	}
	*pos += n
	return nil
}

// DecodeMediaManifest walks a MediaEntries message and returns the
// numeric-key-to-filename mapping. It returns nil when buf is not a
// plausible manifest, so callers can fall through to the next resolution
// strategy instead of failing the import.
func DecodeMediaManifest(buf []byte) map[string]string {
	mapping := make(map[string]string)
	pos := 0
	index := 0
	for pos < len(buf) {
		tag, err := ReadUvarint(buf, &pos)
		if err != nil {
			return nil
		}
		field, wireType := tag>>3, tag&0x07
		if field != 1 || wireType != wireLen {
			if err := SkipField(buf, &pos, wireType); err != nil {
				return nil
			}
			continue
		}
		length, err := ReadUvarint(buf, &pos)
		if err != nil || pos+int(length) > len(buf) {
			return nil
		}
		entry := buf[pos : pos+int(length)]
		pos += int(length)

		name, ok := decodeMediaEntry(entry)
		if !ok {
			return nil
		}
		if name != "" {
			mapping[strconv.Itoa(index)] = name
		}
		index++
	}
	if len(mapping) == 0 {
		return nil
	}
	return mapping
}

func decodeMediaEntry(entry []byte) (string, bool) {
	pos := 0
	name := ""
	for pos < len(entry) {
		tag, err := ReadUvarint(entry, &pos)
		if err != nil {
			return "", false
		}
		field, wireType := tag>>3, tag&0x07
		if field == 1 && wireType == wireLen {
			length, err := ReadUvarint(entry, &pos)
			if err != nil || pos+int(length) > len(entry) {
				return "", false
			}
			raw := entry[pos : pos+int(length)]
			pos += int(length)
			if !utf8.Valid(raw) {
				return "", false
			}
			name = string(raw)
			continue
		}
		// size, sha1 and any future fields
		if err := SkipField(entry, &pos, wireType); err != nil {
			return "", false
		}
	}
	return name, true
}
