// Package wire implements the fixed-layout message codec of spec.md
// §4.I: the small set of control and data messages a reliable-ordered
// transport exchanges to move bulk data between two endpoints
// (EagerSend, EagerSendUnexpected, RTS/CTS/RTSDone, Credit, Bye).
package wire

import (
	"encoding/binary"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

// Kind identifies a message's wire layout.
type Kind uint32

const (
	KindEagerSend Kind = iota
	KindEagerSendUnexpected
	KindRTS
	KindCTS
	KindRTSDone
	KindCredit
	KindBye
)

// headerSize is the {type:u32, credit:u32} prefix shared by every message.
const headerSize = 8

// Header is the common prefix of every message on the wire.
type Header struct {
	Type   Kind
	Credit uint32
}

func putHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Type))
	binary.LittleEndian.PutUint32(buf[4:8], h.Credit)
}

func getHeader(buf []byte) Header {
	return Header{
		Type:   Kind(binary.LittleEndian.Uint32(buf[0:4])),
		Credit: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// PeekHeader decodes just the common header, for dispatching to the
// right Decode* function without knowing the message kind in advance.
func PeekHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, errs.New(errs.BadArg, "short buffer for wire header: %d bytes", len(buf))
	}
	return getHeader(buf), nil
}

// Eager is an EagerSend or EagerSendUnexpected message: the common header
// plus {bmi_tag:i32, class:u32} and an opaque body.
type Eager struct {
	Header
	BMITag int32
	Class  uint32
	Body   []byte
}

const eagerFixedSize = headerSize + 8

// EncodeEager serializes e, including its body.
func EncodeEager(e Eager) []byte {
	buf := make([]byte, eagerFixedSize+len(e.Body))
	putHeader(buf, e.Header)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.BMITag))
	binary.LittleEndian.PutUint32(buf[12:16], e.Class)
	copy(buf[eagerFixedSize:], e.Body)
	return buf
}

// DecodeEager parses an Eager message. The returned Body aliases buf.
func DecodeEager(buf []byte) (Eager, error) {
	if len(buf) < eagerFixedSize {
		return Eager{}, errs.New(errs.BadArg, "short buffer for eager message: %d bytes", len(buf))
	}
	return Eager{
		Header: getHeader(buf),
		BMITag: int32(binary.LittleEndian.Uint32(buf[8:12])),
		Class:  binary.LittleEndian.Uint32(buf[12:16]),
		Body:   buf[eagerFixedSize:],
	}, nil
}

// RTS ("ready to send") announces a pending bulk transfer: the common
// header plus {bmi_tag:i32, _pad:i32, mop_id:u64, total_len:u64}.
type RTS struct {
	Header
	BMITag   int32
	MopID    uint64
	TotalLen uint64
}

const rtsSize = headerSize + 24

// EncodeRTS serializes r.
func EncodeRTS(r RTS) []byte {
	buf := make([]byte, rtsSize)
	putHeader(buf, r.Header)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.BMITag))
	// buf[12:16] is the reserved pad field, left zero.
	binary.LittleEndian.PutUint64(buf[16:24], r.MopID)
	binary.LittleEndian.PutUint64(buf[24:32], r.TotalLen)
	return buf
}

// DecodeRTS parses an RTS message.
func DecodeRTS(buf []byte) (RTS, error) {
	if len(buf) < rtsSize {
		return RTS{}, errs.New(errs.BadArg, "short buffer for RTS message: %d bytes", len(buf))
	}
	return RTS{
		Header:   getHeader(buf),
		BMITag:   int32(binary.LittleEndian.Uint32(buf[8:12])),
		MopID:    binary.LittleEndian.Uint64(buf[16:24]),
		TotalLen: binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// BufListEntry is one remote-buffer descriptor carried by a CTS message:
// 16 bytes of {remote_addr:u64, len:u32, rkey:u32}.
type BufListEntry struct {
	RemoteAddr uint64
	Len        uint32
	RKey       uint32
}

const bufListEntrySize = 16

// CTS ("clear to send") answers an RTS with the buffer list the sender
// should write into: the common header plus {rts_mop_id:u64,
// buflist_total:u64, buflist_num:u32, _pad:u32} followed by the three
// parallel arrays spec.md §4.I describes, here carried as one slice of
// BufListEntry for convenience.
type CTS struct {
	Header
	RTSMopID     uint64
	BufListTotal uint64
	BufList      []BufListEntry
}

const ctsFixedSize = headerSize + 24

// EncodeCTS serializes c, laying the buffer list out as three contiguous
// arrays of remote_addr, len, rkey exactly as spec.md §4.I specifies,
// rather than interleaving BufListEntry fields.
func EncodeCTS(c CTS) []byte {
	n := len(c.BufList)
	buf := make([]byte, ctsFixedSize+n*bufListEntrySize)
	putHeader(buf, c.Header)
	binary.LittleEndian.PutUint64(buf[8:16], c.RTSMopID)
	binary.LittleEndian.PutUint64(buf[16:24], c.BufListTotal)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(n))
	// buf[28:32] is the reserved pad field, left zero.

	addrs := buf[ctsFixedSize:]
	lens := addrs[n*8:]
	rkeys := lens[n*4:]
	for i, e := range c.BufList {
		binary.LittleEndian.PutUint64(addrs[i*8:], e.RemoteAddr)
		binary.LittleEndian.PutUint32(lens[i*4:], e.Len)
		binary.LittleEndian.PutUint32(rkeys[i*4:], e.RKey)
	}
	return buf
}

// DecodeCTS parses a CTS message.
func DecodeCTS(buf []byte) (CTS, error) {
	if len(buf) < ctsFixedSize {
		return CTS{}, errs.New(errs.BadArg, "short buffer for CTS message: %d bytes", len(buf))
	}
	n := int(binary.LittleEndian.Uint32(buf[24:28]))
	want := ctsFixedSize + n*bufListEntrySize
	if len(buf) < want {
		return CTS{}, errs.New(errs.BadArg, "short buffer for CTS buflist: need %d, have %d", want, len(buf))
	}

	addrs := buf[ctsFixedSize:]
	lens := addrs[n*8:]
	rkeys := lens[n*4:]
	list := make([]BufListEntry, n)
	for i := range list {
		list[i] = BufListEntry{
			RemoteAddr: binary.LittleEndian.Uint64(addrs[i*8:]),
			Len:        binary.LittleEndian.Uint32(lens[i*4:]),
			RKey:       binary.LittleEndian.Uint32(rkeys[i*4:]),
		}
	}
	return CTS{
		Header:       getHeader(buf),
		RTSMopID:     binary.LittleEndian.Uint64(buf[8:16]),
		BufListTotal: binary.LittleEndian.Uint64(buf[16:24]),
		BufList:      list,
	}, nil
}

// RTSDone closes out a bulk transfer: the common header plus {mop_id:u64}.
type RTSDone struct {
	Header
	MopID uint64
}

const rtsDoneSize = headerSize + 8

// EncodeRTSDone serializes d.
func EncodeRTSDone(d RTSDone) []byte {
	buf := make([]byte, rtsDoneSize)
	putHeader(buf, d.Header)
	binary.LittleEndian.PutUint64(buf[8:16], d.MopID)
	return buf
}

// DecodeRTSDone parses an RTSDone message.
func DecodeRTSDone(buf []byte) (RTSDone, error) {
	if len(buf) < rtsDoneSize {
		return RTSDone{}, errs.New(errs.BadArg, "short buffer for RTSDone message: %d bytes", len(buf))
	}
	return RTSDone{
		Header: getHeader(buf),
		MopID:  binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// Credit and Bye carry no fields beyond the common header: credit
// accounting travels in Header.Credit itself, and Bye is a pure signal.

// EncodeCredit serializes a Credit message.
func EncodeCredit(h Header) []byte {
	h.Type = KindCredit
	buf := make([]byte, headerSize)
	putHeader(buf, h)
	return buf
}

// EncodeBye serializes a Bye message.
func EncodeBye(h Header) []byte {
	h.Type = KindBye
	buf := make([]byte, headerSize)
	putHeader(buf, h)
	return buf
}

// DecodeHeaderOnly parses a Credit or Bye message, which is nothing more
// than the common header.
func DecodeHeaderOnly(buf []byte) (Header, error) {
	return PeekHeader(buf)
}
