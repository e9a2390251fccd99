package rawpeek

import (
	"encoding/binary"
	"fmt"
)

// TIFF container layout constants.
const (
	leMagic = "II\x2a\x00" // little-endian byte-order mark
	beMagic = "MM\x00\x2a" // big-endian byte-order mark

	headerSize = 8  // magic + first IFD offset
	entrySize  = 12 // tag(2) type(2) count(4) value(4)
	entryValue = 8  // sub-offset of the value field within an entry

	tagJpegOffset = 0x0201 // JPEGInterchangeFormat
	tagJpegLength = 0x0202 // JPEGInterchangeFormatLength

	// maxChain bounds the number of linked IFDs so a cyclic next pointer
	// cannot spin the walk forever.
	maxChain = 1 << 16
)

// view is a bounds-checked window over the mapped file. Every integer read
// during IFD traversal goes through it, so a malformed offset can never
// index outside the mapping.
type view struct {
	buf   []byte
	order binary.ByteOrder
}

func (v view) uint16At(off int64) (uint16, error) {
	if off < 0 || off+2 > int64(len(v.buf)) {
		return 0, fmt.Errorf("%w: u16 at %#x of %d", ErrBounds, off, len(v.buf))
	}
	return v.order.Uint16(v.buf[off:]), nil
}

func (v view) uint32At(off int64) (uint32, error) {
	if off < 0 || off+4 > int64(len(v.buf)) {
		return 0, fmt.Errorf("%w: u32 at %#x of %d", ErrBounds, off, len(v.buf))
	}
	return v.order.Uint32(v.buf[off:]), nil
}

// Locate walks the TIFF IFD chain in buf and returns the byte range of the
// largest embedded JPEG declared by any directory in the chain.
//
// A directory contributes a candidate only when it carries both the
// JPEGInterchangeFormat and JPEGInterchangeFormatLength tags; the first
// occurrence of each tag within a directory wins and the remaining entries
// are not scanned once both are captured. Directories are linked by the
// 4-byte offset following each entry array; a zero offset ends the chain.
//
// Locate returns ErrContainer for an unrecognized byte-order magic,
// ErrNoPreview when no directory carried both tags, and ErrBounds when any
// traversed offset or the final range falls outside buf.
func Locate(buf []byte) (Preview, error) {
	if len(buf) < headerSize {
		return Preview{}, fmt.Errorf("%w: %d byte file", ErrContainer, len(buf))
	}

	var order binary.ByteOrder
	switch string(buf[:4]) {
	case leMagic:
		order = binary.LittleEndian
	case beMagic:
		order = binary.BigEndian
	default:
		return Preview{}, fmt.Errorf("%w: magic % x", ErrContainer, buf[:4])
	}

	v := view{buf: buf, order: order}
	first, err := v.uint32At(4)
	if err != nil {
		return Preview{}, err
	}

	var best Preview
	found := false
	walked := 0
	for ifd := int64(first); ifd != 0; {
		if walked++; walked > maxChain {
			return Preview{}, fmt.Errorf("%w: IFD chain exceeds %d directories", ErrContainer, maxChain)
		}
		count, err := v.uint16At(ifd)
		if err != nil {
			return Preview{}, err
		}

		var jpegOffset, jpegLength uint32
		var haveOffset, haveLength bool
		for i := int64(0); i < int64(count) && !(haveOffset && haveLength); i++ {
			entry := ifd + 2 + i*entrySize
			tag, err := v.uint16At(entry)
			if err != nil {
				return Preview{}, err
			}
			switch tag {
			case tagJpegOffset:
				if !haveOffset {
					if jpegOffset, err = v.uint32At(entry + entryValue); err != nil {
						return Preview{}, err
					}
					haveOffset = true
				}
			case tagJpegLength:
				if !haveLength {
					if jpegLength, err = v.uint32At(entry + entryValue); err != nil {
						return Preview{}, err
					}
					haveLength = true
				}
			}
		}

		if haveOffset && haveLength && jpegLength > 0 &&
			(!found || int64(jpegLength) > best.Length) {
			best = Preview{Offset: int64(jpegOffset), Length: int64(jpegLength)}
			found = true
		}

		next, err := v.uint32At(ifd + 2 + int64(count)*entrySize)
		if err != nil {
			return Preview{}, err
		}
		ifd = int64(next)
	}

	if !found {
		return Preview{}, ErrNoPreview
	}
	if best.Offset+best.Length > int64(len(buf)) {
		return Preview{}, fmt.Errorf("%w: preview %d+%d exceeds %d byte file",
			ErrBounds, best.Offset, best.Length, len(buf))
	}
	return best, nil
}

// hasSOI reports whether b begins with the JPEG start-of-image marker.
func hasSOI(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xff && b[1] == 0xd8
}
