package sgip

import (
	"fmt"
	"time"
)

const (
	assignedSourceNodeID = 1 << iota
	assignedTimestamp
	assignedSequenceNumber
)

// Header holds the fields shared by every PDU. commandLength is derived by
// Encode; the remaining fields remember whether they were explicitly set so
// that a session only fills the ones left blank.
type Header struct {
	commandLength  uint32
	sourceNodeID   uint32
	timestamp      uint32
	sequenceNumber uint32
	assigned       uint8
}

func (h *Header) hdr() *Header { return h }

// CommandLength returns the length computed by the last Encode or read by Decode.
func (h *Header) CommandLength() uint32 { return h.commandLength }

// SourceNodeID returns the source node id.
func (h *Header) SourceNodeID() uint32 { return h.sourceNodeID }

// SetSourceNodeID sets and marks the source node id.
func (h *Header) SetSourceNodeID(v uint32) {
	h.sourceNodeID = v
	h.assigned |= assignedSourceNodeID
}

// HasSourceNodeID reports whether the source node id was set.
func (h *Header) HasSourceNodeID() bool { return h.assigned&assignedSourceNodeID != 0 }

// Timestamp returns the MMDDHHmmss timestamp.
func (h *Header) Timestamp() uint32 { return h.timestamp }

// SetTimestamp sets and marks the timestamp.
func (h *Header) SetTimestamp(v uint32) {
	h.timestamp = v
	h.assigned |= assignedTimestamp
}

// HasTimestamp reports whether the timestamp was set.
func (h *Header) HasTimestamp() bool { return h.assigned&assignedTimestamp != 0 }

// SequenceNumber returns the sequence number.
func (h *Header) SequenceNumber() uint32 { return h.sequenceNumber }

// SetSequenceNumber sets and marks the sequence number.
func (h *Header) SetSequenceNumber(v uint32) {
	h.sequenceNumber = v
	h.assigned |= assignedSequenceNumber
}

// HasSequenceNumber reports whether the sequence number was set.
func (h *Header) HasSequenceNumber() bool { return h.assigned&assignedSequenceNumber != 0 }

func (h *Header) copyFrom(o *Header) {
	h.SetSourceNodeID(o.sourceNodeID)
	h.SetTimestamp(o.timestamp)
	h.SetSequenceNumber(o.sequenceNumber)
}

func (h *Header) String() string {
	return fmt.Sprintf("<len:%d><node:%d><ts:%010d><seq:%d>",
		h.commandLength, h.sourceNodeID, h.timestamp, h.sequenceNumber)
}

// PDU is one of the SGIP message variants defined in this package.
type PDU interface {
	CommandID() CommandID
	CommandLength() uint32
	SourceNodeID() uint32
	SetSourceNodeID(uint32)
	HasSourceNodeID() bool
	Timestamp() uint32
	SetTimestamp(uint32)
	HasTimestamp() bool
	SequenceNumber() uint32
	SetSequenceNumber(uint32)
	HasSequenceNumber() bool
	String() string

	hdr() *Header
	bodyLen() int
	writeBody(w *writer)
	readBody(r *reader) error
}

// Request is a PDU with a clear response bit.
type Request interface {
	PDU
	// CreateResponse returns the matching response carrying this
	// request's source node id, timestamp and sequence number.
	CreateResponse() Response
	isRequest()
}

// Response is a PDU with the response bit set.
type Response interface {
	PDU
	isResponse()
}

// IsRequest reports whether p is a request variant.
func IsRequest(p PDU) bool {
	_, ok := p.(Request)
	return ok
}

// Timestamp encodes t as the decimal number MMDDHHmmss.
func Timestamp(t time.Time) uint32 {
	v := int(t.Month())
	v = v*100 + t.Day()
	v = v*100 + t.Hour()
	v = v*100 + t.Minute()
	v = v*100 + t.Second()
	return uint32(v)
}

func respond(req PDU, resp Response) Response {
	resp.hdr().copyFrom(req.hdr())
	return resp
}

func format(p PDU, body string) string {
	return fmt.Sprintf("%s%s%s", p.CommandID(), p.hdr(), body)
}
