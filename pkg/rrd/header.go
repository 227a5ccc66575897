package rrd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/iamNilotpal/rrdpool/pkg/checksum"
	"github.com/iamNilotpal/rrdpool/pkg/errors"
)

const (
	headerMagic   = "RRDPOOL1"
	headerVersion = uint16(1)

	// slotSize is the width of one stored data point.
	slotSize = 8

	// maxHeaderSize bounds the encoded header body so a corrupt length
	// field cannot trigger a huge allocation.
	maxHeaderSize = 1 << 20
)

// header is the fixed on-disk prologue of an archive file:
//
//	magic[8] | bodyLen uint32 | body | crc32(body) uint32
//
// The body holds the format version, the step and the full source and
// archive layout. Everything is big endian.
type header struct {
	version  uint16
	step     int64
	sources  []Source
	archives []Archive
}

func newHeader(def *Def) *header {
	return &header{
		version:  headerVersion,
		step:     def.Step,
		sources:  def.Sources,
		archives: def.Archives,
	}
}

// dataSize returns the number of bytes reserved after the header for the
// archived data points.
func (h *header) dataSize() int64 {
	var rows int64
	for _, arc := range h.archives {
		rows += int64(arc.Rows)
	}
	return rows * int64(len(h.sources)) * slotSize
}

// encode serializes the header, including magic, length and checksum.
func (h *header) encode() ([]byte, error) {
	var body bytes.Buffer

	if err := binary.Write(&body, binary.BigEndian, h.version); err != nil {
		return nil, err
	}
	if err := binary.Write(&body, binary.BigEndian, h.step); err != nil {
		return nil, err
	}
	if err := binary.Write(&body, binary.BigEndian, uint16(len(h.sources))); err != nil {
		return nil, err
	}
	if err := binary.Write(&body, binary.BigEndian, uint16(len(h.archives))); err != nil {
		return nil, err
	}

	for _, src := range h.sources {
		if err := binary.Write(&body, binary.BigEndian, uint16(len(src.Name))); err != nil {
			return nil, err
		}
		if _, err := body.WriteString(src.Name); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.BigEndian, src.Heartbeat); err != nil {
			return nil, err
		}
	}

	for _, arc := range h.archives {
		if err := binary.Write(&body, binary.BigEndian, uint32(arc.Steps)); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.BigEndian, uint32(arc.Rows)); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	out.WriteString(headerMagic)
	if err := binary.Write(&out, binary.BigEndian, uint32(body.Len())); err != nil {
		return nil, err
	}
	out.Write(body.Bytes())
	if err := binary.Write(&out, binary.BigEndian, checksum.Sum(body.Bytes())); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// decodeHeader reads and verifies a header from r.
func decodeHeader(r io.Reader, path string) (*header, error) {
	magic := make([]byte, len(headerMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrHeaderReadFailed, "Failed to read archive file magic",
		).WithPath(path)
	}
	if string(magic) != headerMagic {
		return nil, errors.NewHandleError(
			nil, errors.ErrHeaderMagicMismatch,
			fmt.Sprintf("Not an archive file: bad magic %q", magic),
		).WithPath(path)
	}

	var bodyLen uint32
	if err := binary.Read(r, binary.BigEndian, &bodyLen); err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrHeaderReadFailed, "Failed to read archive header length",
		).WithPath(path)
	}
	if bodyLen == 0 || bodyLen > maxHeaderSize {
		return nil, errors.NewHandleError(
			nil, errors.ErrHeaderReadFailed,
			fmt.Sprintf("Unreasonable archive header length %d", bodyLen),
		).WithPath(path)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrHeaderReadFailed, "Failed to read archive header body",
		).WithPath(path)
	}

	var sum uint32
	if err := binary.Read(r, binary.BigEndian, &sum); err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrHeaderReadFailed, "Failed to read archive header checksum",
		).WithPath(path)
	}
	if !checksum.Verify(sum, body) {
		return nil, errors.NewHandleError(
			nil, errors.ErrHeaderChecksumMismatch, "Archive header checksum mismatch",
		).WithPath(path)
	}

	br := bytes.NewReader(body)
	h := header{}

	var srcCount, arcCount uint16
	if err := binary.Read(br, binary.BigEndian, &h.version); err != nil {
		return nil, decodeFieldError(err, path, "version")
	}
	if err := binary.Read(br, binary.BigEndian, &h.step); err != nil {
		return nil, decodeFieldError(err, path, "step")
	}
	if err := binary.Read(br, binary.BigEndian, &srcCount); err != nil {
		return nil, decodeFieldError(err, path, "source count")
	}
	if err := binary.Read(br, binary.BigEndian, &arcCount); err != nil {
		return nil, decodeFieldError(err, path, "archive count")
	}

	h.sources = make([]Source, srcCount)
	for i := range h.sources {
		var nameLen uint16
		if err := binary.Read(br, binary.BigEndian, &nameLen); err != nil {
			return nil, decodeFieldError(err, path, "source name length")
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, decodeFieldError(err, path, "source name")
		}
		h.sources[i].Name = string(name)
		if err := binary.Read(br, binary.BigEndian, &h.sources[i].Heartbeat); err != nil {
			return nil, decodeFieldError(err, path, "source heartbeat")
		}
	}

	h.archives = make([]Archive, arcCount)
	for i := range h.archives {
		var steps, rows uint32
		if err := binary.Read(br, binary.BigEndian, &steps); err != nil {
			return nil, decodeFieldError(err, path, "archive steps")
		}
		if err := binary.Read(br, binary.BigEndian, &rows); err != nil {
			return nil, decodeFieldError(err, path, "archive rows")
		}
		h.archives[i] = Archive{Steps: int(steps), Rows: int(rows)}
	}

	return &h, nil
}

func decodeFieldError(err error, path, field string) *errors.HandleError {
	return errors.NewHandleError(
		err, errors.ErrHeaderReadFailed,
		fmt.Sprintf("Truncated archive header: missing %s", field),
	).WithPath(path)
}
