// Package container provides the deterministic, length-prefixed binary
// encoding shared by every AAD/signing construction in this module (§3.2,
// §3.3, §4.5.1's tamper-evident signing). Grounded on the teacher's
// auth/service/audit_signer.go canonicalizeLog/appendLengthPrefixed, which
// used the same scheme to build a canonical byte string before HMAC-signing
// an audit log entry.
package container

import "encoding/binary"

// AppendLengthPrefixed appends a 4-byte big-endian length followed by b to
// buf, so every field decodes unambiguously regardless of its content.
func AppendLengthPrefixed(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	return buf
}

// AppendUint64 appends an 8-byte big-endian encoding of v to buf.
func AppendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
