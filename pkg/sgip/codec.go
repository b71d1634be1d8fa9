package sgip

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// variants resolves a command id to a constructor of its PDU variant.
var variants = map[CommandID]func() PDU{
	CmdBind:        func() PDU { return &Bind{} },
	CmdBindResp:    func() PDU { return &BindResp{} },
	CmdUnbind:      func() PDU { return &Unbind{} },
	CmdUnbindResp:  func() PDU { return &UnbindResp{} },
	CmdSubmit:      func() PDU { return &Submit{} },
	CmdSubmitResp:  func() PDU { return &SubmitResp{} },
	CmdDeliver:     func() PDU { return &Deliver{} },
	CmdDeliverResp: func() PDU { return &DeliverResp{} },
	CmdReport:      func() PDU { return &Report{} },
	CmdReportResp:  func() PDU { return &ReportResp{} },
}

// newPDU returns an empty variant for id and whether the id is known.
func newPDU(id CommandID) (PDU, bool) {
	if mk, ok := variants[id]; ok {
		return mk(), true
	}
	if id.IsRequest() {
		return &UnknownRequest{ID: id}, false
	}
	return &UnknownResponse{ID: id}, false
}

// Encode serializes p into a single frame. The command length of p is
// recomputed from its current body.
func Encode(p PDU) ([]byte, error) {
	if v, ok := p.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, unrecoverable(p, err)
		}
	}

	size := HeaderLen + p.bodyLen()
	h := p.hdr()
	h.commandLength = uint32(size)

	w := newWriter(size)
	w.uint32(h.commandLength)
	w.uint32(uint32(p.CommandID()))
	w.uint32(h.sourceNodeID)
	w.uint32(h.timestamp)
	w.uint32(h.sequenceNumber)
	p.writeBody(w)

	if len(w.bytes()) != size {
		return nil, unrecoverable(p, errors.Errorf("encoded %d bytes, expected %d", len(w.bytes()), size))
	}
	return w.bytes(), nil
}

// Decode decodes the first frame held in b. It returns the number of bytes
// consumed, which is zero (with a nil PDU and error) while b does not yet
// hold a complete frame.
func Decode(b []byte) (PDU, int, error) {
	if len(b) < intLen {
		return nil, 0, nil
	}
	length := binary.BigEndian.Uint32(b)
	if length < HeaderLen {
		return nil, 0, unrecoverable(nil, errors.Wrapf(ErrInvalidLength, "[%d] parsed", length))
	}
	if uint64(len(b)) < uint64(length) {
		return nil, 0, nil
	}
	p, err := DecodeFrame(length, b[:length])
	return p, int(length), err
}

// DecodeFrame decodes exactly one frame, length prefix included, whose
// announced length is commandLength.
//
// An unknown command id yields the UnknownRequest or UnknownResponse
// sentinel together with a RecoverableError carrying it.
func DecodeFrame(commandLength uint32, frame []byte) (PDU, error) {
	if commandLength < HeaderLen {
		return nil, unrecoverable(nil, errors.Wrapf(ErrInvalidLength, "[%d] parsed", commandLength))
	}
	if uint64(len(frame)) < uint64(commandLength) {
		return nil, unrecoverable(nil, errors.Wrapf(io.ErrUnexpectedEOF,
			"frame holds %d bytes, header announces %d", len(frame), commandLength))
	}

	r := newReader(frame[intLen:commandLength])
	var fields [4]uint32
	for i := range fields {
		fields[i], _ = r.uint32() // nolint: errcheck
	}
	id := CommandID(fields[0])

	p, known := newPDU(id)
	h := p.hdr()
	h.commandLength = commandLength
	h.SetSourceNodeID(fields[1])
	h.SetTimestamp(fields[2])
	h.SetSequenceNumber(fields[3])

	if !known {
		kind := "request"
		if id.IsResponse() {
			kind = "response"
		}
		return p, &RecoverableError{PDU: p, Err: errors.Wrapf(ErrUnknownCommandID, "%s commandId [0x%08x]", kind, uint32(id))}
	}
	if err := p.readBody(r); err != nil {
		return p, unrecoverable(p, err)
	}
	return p, nil
}

// ReadFrame reads one length-prefixed frame from r. Frames announcing a
// length below HeaderLen or above maxLen are rejected without reading the
// body.
func ReadFrame(r io.Reader, maxLen uint32) ([]byte, error) {
	prefix := make([]byte, intLen)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix)
	if length < HeaderLen || length > maxLen {
		return nil, unrecoverable(nil, errors.Wrapf(ErrInvalidLength, "[%d] parsed", length))
	}
	f := append(prefix, make([]byte, length-intLen)...)
	if _, err := io.ReadFull(r, f[intLen:]); err != nil {
		return nil, err
	}
	return f, nil
}
