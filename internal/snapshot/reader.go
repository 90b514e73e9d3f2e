package snapshot

import (
	"encoding/binary"
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"main/internal/schema"
)

var ErrReaderClosed = errors.New("snapshot reader closed")

// Reader memory-maps a snapshot file and hands out zero-copy record pointers.
// Records are immutable and valid until Close. Not safe for concurrent use.
type Reader struct {
	data   []byte
	header FileHeader
	count  int
	pos    int
	closed bool
}

// Open maps path read-only and validates the header against the payload.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size < HeaderSize {
		return nil, ErrTruncated
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	header, err := decodeHeader(data[:HeaderSize])
	if err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}
	// Zero-copy reinterpretation requires the host byte order to match the
	// on-disk little-endian layout.
	if binary.NativeEndian.Uint32(data[12:16]) != EndianCheck {
		_ = unix.Munmap(data)
		return nil, ErrEndianMismatch
	}

	payload := size - HeaderSize
	if payload%RecordSize != 0 {
		_ = unix.Munmap(data)
		return nil, ErrTruncated
	}
	count := int(payload / RecordSize)
	if header.RecordCount != 0 && header.RecordCount != uint64(count) {
		_ = unix.Munmap(data)
		return nil, ErrCountMismatch
	}

	return &Reader{data: data, header: header, count: count}, nil
}

// Header returns the validated file header.
func (r *Reader) Header() FileHeader { return r.header }

// Len returns the record count.
func (r *Reader) Len() int { return r.count }

// Pos returns the index of the record Next will return.
func (r *Reader) Pos() int { return r.pos }

// Next returns a pointer into the mapping for the next record, or nil at end.
func (r *Reader) Next() *schema.Record {
	if r.closed || r.pos >= r.count {
		return nil
	}
	rec := r.At(r.pos)
	r.pos++
	return rec
}

// At returns the i-th record. It panics when i is out of range.
func (r *Reader) At(i int) *schema.Record {
	if r.closed {
		panic("snapshot: reader closed")
	}
	if i < 0 || i >= r.count {
		panic("snapshot: record index out of range")
	}
	off := HeaderSize + i*RecordSize
	return (*schema.Record)(unsafe.Pointer(&r.data[off]))
}

// Reset rewinds to the first record.
func (r *Reader) Reset() { r.pos = 0 }

// Close unmaps the file. Record pointers become invalid.
func (r *Reader) Close() error {
	if r.closed {
		return ErrReaderClosed
	}
	r.closed = true
	data := r.data
	r.data = nil
	return unix.Munmap(data)
}
