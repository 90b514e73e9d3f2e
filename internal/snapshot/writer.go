package snapshot

import (
	"bufio"
	"errors"
	"os"

	"main/internal/schema"
)

var ErrWriterClosed = errors.New("snapshot writer closed")

const writerBufferSize = 1 << 20

// Writer streams records to <path>.part and atomically renames onto path when
// Close succeeds. The header is written twice: a provisional copy with
// RecordCount zero up front, and the final count on Close. A crashed run
// leaves at most the .part file; the target path only appears on rename.
type Writer struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	header FileHeader
	count  uint64
	closed bool

	recordBuf [RecordSize]byte
}

// NewWriter creates <path>.part and writes the provisional header.
func NewWriter(path string, header FileHeader) (*Writer, error) {
	if err := header.validate(); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path+".part", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		path:   path,
		file:   file,
		buf:    bufio.NewWriterSize(file, writerBufferSize),
		header: header,
	}
	header.RecordCount = 0
	var headerBuf [HeaderSize]byte
	encodeHeader(headerBuf[:], header)
	if _, err := w.buf.Write(headerBuf[:]); err != nil {
		_ = file.Close()
		_ = os.Remove(path + ".part")
		return nil, err
	}
	return w, nil
}

// Append serialises one record.
func (w *Writer) Append(rec *schema.Record) error {
	if w.closed {
		return ErrWriterClosed
	}
	encodeRecord(w.recordBuf[:], rec)
	if _, err := w.buf.Write(w.recordBuf[:]); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() uint64 { return w.count }

// Close finalises the header with the record count, syncs, and renames the
// temporary file onto the target path.
func (w *Writer) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		w.discard()
		return err
	}
	final := w.header
	final.RecordCount = w.count
	var headerBuf [HeaderSize]byte
	encodeHeader(headerBuf[:], final)
	if _, err := w.file.WriteAt(headerBuf[:], 0); err != nil {
		w.discard()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return err
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.path + ".part")
		return err
	}
	return os.Rename(w.path+".part", w.path)
}

// Abort drops the temporary file without finalising.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.discard()
}

func (w *Writer) discard() {
	_ = w.file.Close()
	_ = os.Remove(w.path + ".part")
}
