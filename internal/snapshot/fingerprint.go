package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
)

const fingerprintChunk = 4096

// Fingerprint identifies a snapshot file by hashing its size together with
// the first and last 4 KiB. Cheap enough for run manifests over large files.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()

	h := sha256.New()
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])

	head := make([]byte, min(size, fingerprintChunk))
	if _, err := io.ReadFull(file, head); err != nil {
		return "", err
	}
	h.Write(head)

	if size > fingerprintChunk {
		tail := make([]byte, fingerprintChunk)
		if _, err := file.ReadAt(tail, size-fingerprintChunk); err != nil {
			return "", err
		}
		h.Write(tail)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
