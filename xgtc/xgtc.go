// Package xgtc implements the minimum XGTC wire framing spec.md §6
// requires: the BwAlloc/BWmap encoding and the XGEM frame header, using
// explicit byte-offset encode/decode over encoding/binary, grounded on the
// explicit-offset framing style of drivers/netconf/bbf_yang.go.
package xgtc

import (
	"encoding/binary"
	"fmt"

	"github.com/nanoncore/xgponsim/ident"
	"github.com/nanoncore/xgponsim/model"
)

// BwAllocWireLen is the on-wire size of one packed BwAlloc record.
const BwAllocWireLen = 8

// EncodeBwAlloc packs a BwAlloc into its 8-byte wire form:
//
//	AllocId(14b)+flags(2b) | StartTime(16b) | GrantSize(16b) | BurstProfileIndex(2b)+HEC(14b)
func EncodeBwAlloc(a model.BwAlloc) ([BwAllocWireLen]byte, error) {
	var out [BwAllocWireLen]byte
	if !a.AllocId.Valid() {
		return out, fmt.Errorf("xgtc: alloc id %d out of range", uint16(a.AllocId))
	}
	word0 := uint16(a.AllocId)<<2 | uint16(a.Flags&0x3)
	binary.BigEndian.PutUint16(out[0:2], word0)
	binary.BigEndian.PutUint16(out[2:4], a.StartTime)
	binary.BigEndian.PutUint16(out[4:6], a.GrantSize)
	word3 := uint16(a.BurstProfileIndex&0x3) << 14
	word3 |= computeHEC14(out[:6]) & 0x3FFF
	binary.BigEndian.PutUint16(out[6:8], word3)
	return out, nil
}

// DecodeBwAlloc unpacks an 8-byte wire record back into a BwAlloc. The
// third-flag bit (force-wake) is carried out of band in Flags by callers
// that set it; the wire form here only round-trips the two bits spec.md
// places alongside AllocId.
func DecodeBwAlloc(buf []byte) (model.BwAlloc, error) {
	if len(buf) < BwAllocWireLen {
		return model.BwAlloc{}, fmt.Errorf("xgtc: short BwAlloc buffer (%d bytes)", len(buf))
	}
	word0 := binary.BigEndian.Uint16(buf[0:2])
	a := model.BwAlloc{
		AllocId:   ident.AllocId(word0 >> 2),
		Flags:     model.BwAllocFlags(word0 & 0x3),
		StartTime: binary.BigEndian.Uint16(buf[2:4]),
		GrantSize: binary.BigEndian.Uint16(buf[4:6]),
	}
	word3 := binary.BigEndian.Uint16(buf[6:8])
	a.BurstProfileIndex = uint8(word3 >> 14)
	return a, nil
}

// computeHEC14 is a simple checksum-shaped placeholder HEC (hybrid error
// correction field is carried but not cryptographically meaningful in this
// simulation, matching spec.md's "payloads are not actually enciphered"
// stance on XGEM encryption taken one step further for HEC).
func computeHEC14(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum = (sum << 1) ^ uint16(b)
	}
	return sum
}

// PlendLen is the size of the BWmap's leading Plend (payload length) field.
const PlendLen = 4

// EncodeBWmap packs a BWmap into Plend(4B) + N*BwAlloc(8B).
func EncodeBWmap(m model.BWmap) ([]byte, error) {
	out := make([]byte, PlendLen+len(m.Allocs)*BwAllocWireLen)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(m.Allocs)))
	for i, a := range m.Allocs {
		enc, err := EncodeBwAlloc(a)
		if err != nil {
			return nil, err
		}
		copy(out[PlendLen+i*BwAllocWireLen:], enc[:])
	}
	return out, nil
}

// DecodeBWmap unpacks a wire-form BWmap (without reconstructing
// CreationTime, which is not carried on the wire and must be supplied by
// the caller from the delivery event).
func DecodeBWmap(buf []byte) (model.BWmap, error) {
	if len(buf) < PlendLen {
		return model.BWmap{}, fmt.Errorf("xgtc: short BWmap buffer (%d bytes)", len(buf))
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	want := PlendLen + int(n)*BwAllocWireLen
	if len(buf) < want {
		return model.BWmap{}, fmt.Errorf("xgtc: BWmap declares %d records but buffer is %d bytes (need %d)", n, len(buf), want)
	}
	m := model.BWmap{Allocs: make([]model.BwAlloc, n)}
	for i := uint32(0); i < n; i++ {
		a, err := DecodeBwAlloc(buf[PlendLen+int(i)*BwAllocWireLen:])
		if err != nil {
			return model.BWmap{}, err
		}
		m.Allocs[i] = a
	}
	return m, nil
}

// XgemHeaderLen is the fixed 8-byte XGEM frame header size.
const XgemHeaderLen = 8

// XgemHeader is the 64-bit XGEM frame header: PLI(14b)+KeyIndex(2b)+
// Port-ID(16b)+Options(18b)+HEC(13b)+last-fragment(1b).
type XgemHeader struct {
	PLI           uint16 // payload length indicator, 14 bits
	KeyIndex      uint8  // 2 bits
	PortID        ident.XgemPortId
	Options       uint32 // 18 bits
	LastFragment  bool
}

// IdleXgemPortId is the reserved XGEM port used for idle frames.
const IdleXgemPortId ident.XgemPortId = 0xFFFF

// EncodeXgemHeader packs h into its 8-byte wire form.
func EncodeXgemHeader(h XgemHeader) [XgemHeaderLen]byte {
	var out [XgemHeaderLen]byte
	w0 := (h.PLI&0x3FFF)<<2 | uint16(h.KeyIndex&0x3)
	binary.BigEndian.PutUint16(out[0:2], w0)
	binary.BigEndian.PutUint16(out[2:4], uint16(h.PortID))

	// Options(18b) + HEC(13b) + last-fragment(1b) packed across 4 bytes.
	var tail uint32
	tail = (h.Options & 0x3FFFF) << 14
	hec := computeHEC14(out[:4]) & 0x1FFF
	tail |= uint32(hec) << 1
	if h.LastFragment {
		tail |= 1
	}
	binary.BigEndian.PutUint32(out[4:8], tail)
	return out
}

// DecodeXgemHeader unpacks an 8-byte wire header.
func DecodeXgemHeader(buf []byte) (XgemHeader, error) {
	if len(buf) < XgemHeaderLen {
		return XgemHeader{}, fmt.Errorf("xgtc: short XGEM header buffer (%d bytes)", len(buf))
	}
	w0 := binary.BigEndian.Uint16(buf[0:2])
	h := XgemHeader{
		PLI:      w0 >> 2,
		KeyIndex: uint8(w0 & 0x3),
		PortID:   ident.XgemPortId(binary.BigEndian.Uint16(buf[2:4])),
	}
	tail := binary.BigEndian.Uint32(buf[4:8])
	h.LastFragment = tail&1 != 0
	h.Options = (tail >> 14) & 0x3FFFF
	return h, nil
}

// XgemFrameMaxLen is the maximum size of one XGEM frame including its
// header, per XGPON_XGEM_FRAME_MAXLEN in spec.md §4.4.
const XgemFrameMaxLen = 4 * 1024

// XgemFrame is a decoded XGEM frame: header plus payload bytes.
type XgemFrame struct {
	Header  XgemHeader
	Payload []byte
}

// Encode serializes f as header||payload.
func (f XgemFrame) Encode() []byte {
	hdr := EncodeXgemHeader(f.Header)
	out := make([]byte, 0, XgemHeaderLen+len(f.Payload))
	out = append(out, hdr[:]...)
	out = append(out, f.Payload...)
	return out
}

// NewIdleFrame builds an idle XGEM frame of exactly totalLen bytes
// (header + padding payload), per spec.md §4.4.
func NewIdleFrame(totalLen int) XgemFrame {
	payloadLen := totalLen - XgemHeaderLen
	if payloadLen < 0 {
		payloadLen = 0
	}
	return XgemFrame{
		Header: XgemHeader{
			PLI:          uint16(payloadLen),
			PortID:       IdleXgemPortId,
			LastFragment: true,
		},
		Payload: make([]byte, payloadLen),
	}
}
