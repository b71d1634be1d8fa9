package sgip

import "fmt"

// Report types.
const (
	ReportTypeSubmit = 0 // state of a previous Submit
	ReportTypeUser   = 1 // state of a previous user report
)

// Report states.
const (
	ReportStateDelivered = 0
	ReportStateWaiting   = 1
	ReportStateFailed    = 2
)

// Report notifies the SP of the final state of an earlier Submit. The
// submitted PDU is identified by its header triple.
type Report struct {
	Header
	SubmitSourceNodeID   uint32
	SubmitTimestamp      uint32
	SubmitSequenceNumber uint32
	ReportType           uint8
	UserNumber           string
	State                uint8
	ErrorCode            uint8
	Reserve              string
}

// CommandID implements PDU.
func (*Report) CommandID() CommandID { return CmdReport }

// CreateResponse implements Request.
func (p *Report) CreateResponse() Response { return respond(p, &ReportResp{}) }

func (*Report) isRequest() {}

func (*Report) bodyLen() int {
	return intLen + intLen + intLen + 1 + numberLen + 1 + 1 + reserveLen
}

func (p *Report) writeBody(w *writer) {
	w.uint32(p.SubmitSourceNodeID)
	w.uint32(p.SubmitTimestamp)
	w.uint32(p.SubmitSequenceNumber)
	w.byte(p.ReportType)
	w.fixedString(p.UserNumber, numberLen)
	w.byte(p.State)
	w.byte(p.ErrorCode)
	w.fixedString(p.Reserve, reserveLen)
}

func (p *Report) readBody(r *reader) (err error) {
	for _, f := range []*uint32{&p.SubmitSourceNodeID, &p.SubmitTimestamp, &p.SubmitSequenceNumber} {
		if *f, err = r.uint32(); err != nil {
			return err
		}
	}
	if p.ReportType, err = r.byte(); err != nil {
		return err
	}
	if p.UserNumber, err = r.fixedString(numberLen); err != nil {
		return err
	}
	if p.State, err = r.byte(); err != nil {
		return err
	}
	if p.ErrorCode, err = r.byte(); err != nil {
		return err
	}
	p.Reserve, err = r.fixedString(reserveLen)
	return err
}

func (p *Report) String() string {
	return format(p, fmt.Sprintf("(SubmitSourceNodeID=%d, SubmitTimestamp=%010d, SubmitSequenceNumber=%d, "+
		"ReportType=%d, UserNumber=%s, State=%d, ErrorCode=0x%02x, Reserve=%s)",
		p.SubmitSourceNodeID, p.SubmitTimestamp, p.SubmitSequenceNumber,
		p.ReportType, p.UserNumber, p.State, p.ErrorCode, p.Reserve))
}

// ReportResp answers a Report.
type ReportResp struct {
	Header
	Result  uint8
	Reserve string
}

// CommandID implements PDU.
func (*ReportResp) CommandID() CommandID { return CmdReportResp }

func (*ReportResp) isResponse() {}

func (*ReportResp) bodyLen() int { return resultBodyLen }

func (p *ReportResp) writeBody(w *writer) { writeResult(w, p.Result, p.Reserve) }

func (p *ReportResp) readBody(r *reader) (err error) {
	p.Result, p.Reserve, err = readResult(r)
	return err
}

func (p *ReportResp) String() string { return format(p, formatResult(p.Result, p.Reserve)) }
