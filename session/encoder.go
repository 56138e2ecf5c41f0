package session

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// blobVersion is the first byte of every encoded session.
const blobVersion byte = 1

var (
	errUserIDTooLong   = errors.New("session: user id longer than 255 bytes")
	errMetadataTooLong = errors.New("session: metadata field longer than 65535 bytes")
	errBlobVersion     = errors.New("session: unsupported blob version")
	errBlobTruncated   = errors.New("session: truncated blob")
	errBlobTrailing    = errors.New("session: trailing bytes in blob")
)

// Encode serialises s without its ID, which is the storage key.
//
// Layout (big endian): version u8, user id as u8 length + bytes, created and expires as
// i64 unix milliseconds, then ip, user agent and device as u16 length + bytes each.
func Encode(s *Session) ([]byte, error) {
	if len(s.UserID) > math.MaxUint8 {
		return nil, errUserIDTooLong
	}
	meta := [...]string{s.Metadata.IP, s.Metadata.UserAgent, s.Metadata.Device}

	size := 2 + len(s.UserID) + 16
	for _, f := range meta {
		if len(f) > math.MaxUint16 {
			return nil, errMetadataTooLong
		}
		size += 2 + len(f)
	}

	out := make([]byte, 0, size)
	out = append(out, blobVersion, byte(len(s.UserID)))
	out = append(out, s.UserID...)
	out = binary.BigEndian.AppendUint64(out, uint64(s.CreatedAt.UnixMilli()))
	out = binary.BigEndian.AppendUint64(out, uint64(s.ExpiresAt.UnixMilli()))
	for _, f := range meta {
		out = binary.BigEndian.AppendUint16(out, uint16(len(f)))
		out = append(out, f...)
	}
	return out, nil
}

// Decode parses a blob produced by Encode. The returned session has an empty ID.
func Decode(data []byte) (*Session, error) {
	d := decoder{buf: data}
	if v := d.u8(); d.err == nil && v != blobVersion {
		return nil, errBlobVersion
	}

	s := &Session{}
	s.UserID = d.str(int(d.u8()))
	s.CreatedAt = time.UnixMilli(int64(d.u64()))
	s.ExpiresAt = time.UnixMilli(int64(d.u64()))
	s.Metadata.IP = d.str(int(d.u16()))
	s.Metadata.UserAgent = d.str(int(d.u16()))
	s.Metadata.Device = d.str(int(d.u16()))

	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, errBlobTrailing
	}
	return s, nil
}

// decoder consumes buf front to back. After the first short read every call returns
// the zero value and err stays set.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = errBlobTruncated
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) u8() byte {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) str(n int) string {
	return string(d.take(n))
}
