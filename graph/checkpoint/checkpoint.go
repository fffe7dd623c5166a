// Package checkpoint implements the binary DTCK checkpoint file format: a
// portable export/import encoding for a graph execution's state snapshot
// and trace, layered on top of graph/store's JSON-oriented step/checkpoint
// persistence.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Magic is the 4-byte file signature every DTCK checkpoint begins with.
var Magic = [4]byte{'D', 'T', 'C', 'K'}

// Version identifies the header layout. CurrentVersion is the only
// version this package writes; Read rejects any other value.
type Version uint32

const CurrentVersion Version = 1

// Flags is a bitset carried in the header.
type Flags uint32

const (
	// FlagCompressed indicates the primary and secondary sections are
	// zstd-compressed.
	FlagCompressed Flags = 1 << 0
	// FlagHasSecondary indicates the secondary section (trace) is present.
	FlagHasSecondary Flags = 1 << 1
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// headerSize is the fixed 32-byte header layout: magic(4) + version(4) +
// flags(4) + checksum(4) + primaryOffset(8) + secondaryOffset(8).
const headerSize = 32

// ErrBadMagic is returned by Read when the file does not begin with Magic.
var ErrBadMagic = errors.New("checkpoint: bad magic")

// ErrUnknownVersion is returned by Read when the header's version field is
// not one this package understands.
var ErrUnknownVersion = errors.New("checkpoint: unknown version")

// ErrChecksumMismatch is returned by Read when the body's CRC32 does not
// match the header's recorded checksum.
var ErrChecksumMismatch = errors.New("checkpoint: checksum mismatch")

// header is the 32-byte DTCK header.
type header struct {
	version         Version
	flags           Flags
	checksum        uint32
	primaryOffset   uint64
	secondaryOffset uint64
}

func (h header) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.version))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.flags))
	binary.LittleEndian.PutUint32(buf[12:16], h.checksum)
	binary.LittleEndian.PutUint64(buf[16:24], h.primaryOffset)
	binary.LittleEndian.PutUint64(buf[24:32], h.secondaryOffset)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if len(buf) < headerSize {
		return h, fmt.Errorf("checkpoint: short header (%d bytes)", len(buf))
	}
	if !bytes.Equal(buf[0:4], Magic[:]) {
		return h, ErrBadMagic
	}
	h.version = Version(binary.LittleEndian.Uint32(buf[4:8]))
	h.flags = Flags(binary.LittleEndian.Uint32(buf[8:12]))
	h.checksum = binary.LittleEndian.Uint32(buf[12:16])
	h.primaryOffset = binary.LittleEndian.Uint64(buf[16:24])
	h.secondaryOffset = binary.LittleEndian.Uint64(buf[24:32])
	if h.version != CurrentVersion {
		return h, ErrUnknownVersion
	}
	return h, nil
}

// File is the decoded content of a DTCK checkpoint: a primary section
// (state snapshot) and an optional secondary section (trace-so-far).
// Both are opaque byte payloads from this package's point of view — the
// caller supplies already-serialized state/trace bytes (e.g. from
// graph/store.CheckpointV2's JSON encoding) and decodes them back after
// Read.
type File struct {
	Primary   []byte
	Secondary []byte
}

// Write encodes f to w as a DTCK checkpoint. When compress is true, both
// sections are zstd-compressed before being laid out.
func Write(w io.Writer, f File, compress bool) error {
	primary := f.Primary
	secondary := f.Secondary
	flags := Flags(0)

	if compress {
		var err error
		primary, err = zstdCompress(primary)
		if err != nil {
			return fmt.Errorf("checkpoint: compress primary: %w", err)
		}
		if len(secondary) > 0 {
			secondary, err = zstdCompress(secondary)
			if err != nil {
				return fmt.Errorf("checkpoint: compress secondary: %w", err)
			}
		}
		flags |= FlagCompressed
	}

	if len(f.Secondary) > 0 {
		flags |= FlagHasSecondary
	}

	primaryOffset := uint64(headerSize)
	secondaryOffset := primaryOffset + uint64(len(primary))

	body := make([]byte, 0, len(primary)+len(secondary))
	body = append(body, primary...)
	body = append(body, secondary...)
	checksum := crc32.ChecksumIEEE(body)

	h := header{
		version:         CurrentVersion,
		flags:           flags,
		checksum:        checksum,
		primaryOffset:   primaryOffset,
		secondaryOffset: secondaryOffset,
	}

	if _, err := w.Write(h.encode()); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return nil
}

// Read decodes a DTCK checkpoint from r. It rejects mismatched magic,
// unknown versions, and checksum mismatches.
func Read(r io.Reader) (File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, err
	}
	if len(data) < headerSize {
		return File{}, fmt.Errorf("checkpoint: file too short (%d bytes)", len(data))
	}

	h, err := decodeHeader(data[:headerSize])
	if err != nil {
		return File{}, err
	}

	body := data[headerSize:]
	if crc32.ChecksumIEEE(body) != h.checksum {
		return File{}, ErrChecksumMismatch
	}

	primaryEnd := h.secondaryOffset - headerSize
	if h.secondaryOffset < uint64(h.primaryOffset) || primaryEnd > uint64(len(body)) {
		return File{}, fmt.Errorf("checkpoint: corrupt section offsets")
	}

	primary := body[:primaryEnd]
	var secondary []byte
	if h.flags.Has(FlagHasSecondary) {
		secondary = body[primaryEnd:]
	}

	if h.flags.Has(FlagCompressed) {
		primary, err = zstdDecompress(primary)
		if err != nil {
			return File{}, fmt.Errorf("checkpoint: decompress primary: %w", err)
		}
		if len(secondary) > 0 {
			secondary, err = zstdDecompress(secondary)
			if err != nil {
				return File{}, fmt.Errorf("checkpoint: decompress secondary: %w", err)
			}
		}
	}

	return File{Primary: primary, Secondary: secondary}, nil
}

func zstdCompress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
