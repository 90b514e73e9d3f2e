// Package snapshot implements the binary top-of-book snapshot file format:
// a 40-byte little-endian header followed by fixed-size records. Files are
// written through a temporary path and renamed on success, and read back
// through a zero-copy memory mapping.
package snapshot

import (
	"encoding/binary"
	"errors"

	"main/internal/schema"
)

const (
	Magic       uint32 = 0x4C32424F
	Version     uint16 = 1
	HeaderSize         = 40
	RecordSize         = 656
	EndianCheck uint32 = 0x01020304
)

var (
	ErrInvalidMagic       = errors.New("snapshot invalid magic")
	ErrVersionMismatch    = errors.New("snapshot unsupported version")
	ErrDepthMismatch      = errors.New("snapshot depth mismatch")
	ErrRecordSizeMismatch = errors.New("snapshot record size mismatch")
	ErrEndianMismatch     = errors.New("snapshot endian check failed")
	ErrInvalidScale       = errors.New("snapshot non-positive scale")
	ErrTruncated          = errors.New("snapshot truncated payload")
	ErrCountMismatch      = errors.New("snapshot record count mismatch")
)

// FileHeader is the self-describing preamble of a snapshot file.
// RecordCount may be zero, meaning "infer from file size".
type FileHeader struct {
	Magic       uint32
	Version     uint16
	Depth       uint16
	RecordSize  uint32
	EndianCheck uint32
	PriceScale  int64
	QtyScale    int64
	RecordCount uint64
}

// NewFileHeader returns a header for the given scales with RecordCount unset.
func NewFileHeader(priceScale, qtyScale int64) FileHeader {
	return FileHeader{
		Magic:       Magic,
		Version:     Version,
		Depth:       schema.Depth,
		RecordSize:  RecordSize,
		EndianCheck: EndianCheck,
		PriceScale:  priceScale,
		QtyScale:    qtyScale,
	}
}

func encodeHeader(dst []byte, h FileHeader) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], h.Magic)
	binary.LittleEndian.PutUint16(dst[4:6], h.Version)
	binary.LittleEndian.PutUint16(dst[6:8], h.Depth)
	binary.LittleEndian.PutUint32(dst[8:12], h.RecordSize)
	binary.LittleEndian.PutUint32(dst[12:16], h.EndianCheck)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(h.PriceScale))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(h.QtyScale))
	binary.LittleEndian.PutUint64(dst[32:40], h.RecordCount)
}

func decodeHeader(src []byte) (FileHeader, error) {
	if len(src) < HeaderSize {
		return FileHeader{}, ErrTruncated
	}
	h := FileHeader{
		Magic:       binary.LittleEndian.Uint32(src[0:4]),
		Version:     binary.LittleEndian.Uint16(src[4:6]),
		Depth:       binary.LittleEndian.Uint16(src[6:8]),
		RecordSize:  binary.LittleEndian.Uint32(src[8:12]),
		EndianCheck: binary.LittleEndian.Uint32(src[12:16]),
		PriceScale:  int64(binary.LittleEndian.Uint64(src[16:24])),
		QtyScale:    int64(binary.LittleEndian.Uint64(src[24:32])),
		RecordCount: binary.LittleEndian.Uint64(src[32:40]),
	}
	return h, h.validate()
}

func (h FileHeader) validate() error {
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.Version != Version {
		return ErrVersionMismatch
	}
	if h.Depth != schema.Depth {
		return ErrDepthMismatch
	}
	if h.RecordSize != RecordSize {
		return ErrRecordSizeMismatch
	}
	if h.EndianCheck != EndianCheck {
		return ErrEndianMismatch
	}
	if h.PriceScale <= 0 || h.QtyScale <= 0 {
		return ErrInvalidScale
	}
	return nil
}

func encodeRecord(dst []byte, rec *schema.Record) {
	_ = dst[RecordSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], uint64(rec.TsEventMs))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(rec.TsRecvNs))
	off := 16
	for i := 0; i < schema.Depth; i++ {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(rec.Bids[i].PriceQ))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(rec.Bids[i].QtyQ))
		off += 16
	}
	for i := 0; i < schema.Depth; i++ {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(rec.Asks[i].PriceQ))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(rec.Asks[i].QtyQ))
		off += 16
	}
}
