package sgip

import (
	"fmt"
	"strings"
)

const (
	numberLen        = 21
	corporationIDLen = 5
	serviceTypeLen   = 10
	feeValueLen      = 6
	timeFieldLen     = 16
)

// Submit sends a mobile terminated short message from the SP to one or
// more users.
type Submit struct {
	Header
	SPNumber      string
	ChargeNumber  string
	UserNumbers   []string
	CorporationID string
	ServiceType   string
	FeeType       uint8
	FeeValue      int // cents, 0-99999, written as decimal ASCII
	GivenValue    int // cents, 0-99999, written as decimal ASCII
	BillFlag      uint8
	MoToMtFlag    uint8
	Priority      uint8 // 0-9
	ExpireTime    string
	ScheduleTime  string
	ReportFlag    uint8
	TpPid         uint8
	TpUdhi        uint8
	MessageCoding uint8
	MessageType   uint8
	Content       []byte
	Reserve       string
}

// NewSubmit returns a Submit to a single user with the SP paying the fee.
func NewSubmit(spNumber, userNumber string, content []byte) *Submit {
	return &Submit{
		SPNumber:     spNumber,
		ChargeNumber: DefaultChargeNumber,
		UserNumbers:  []string{userNumber},
		ReportFlag:   ReportFlagErrorOnly,
		TpPid:        TpPidNormal,
		MessageType:  MessageTypeSMS,
		Content:      content,
	}
}

// CommandID implements PDU.
func (*Submit) CommandID() CommandID { return CmdSubmit }

// CreateResponse implements Request.
func (p *Submit) CreateResponse() Response { return respond(p, &SubmitResp{}) }

func (*Submit) isRequest() {}

// Validate checks the ranges enforced by the gateway.
func (p *Submit) Validate() error {
	if len(p.UserNumbers) == 0 {
		return invalidField("no user numbers")
	}
	if len(p.UserNumbers) > maxUserCount {
		return invalidField("too many user numbers: %d > %d", len(p.UserNumbers), maxUserCount)
	}
	if p.FeeValue < 0 || p.FeeValue > maxFeeValue {
		return invalidField("fee value %d not in [0, %d]", p.FeeValue, maxFeeValue)
	}
	if p.GivenValue < 0 || p.GivenValue > maxFeeValue {
		return invalidField("given value %d not in [0, %d]", p.GivenValue, maxFeeValue)
	}
	if p.Priority > maxPriority {
		return invalidField("priority %d not in [0, %d]", p.Priority, maxPriority)
	}
	return nil
}

func (p *Submit) bodyLen() int {
	return numberLen + numberLen + 1 + numberLen*len(p.UserNumbers) + corporationIDLen + serviceTypeLen +
		1 + feeValueLen + feeValueLen + 1 + 1 + 1 + timeFieldLen + timeFieldLen +
		1 + 1 + 1 + 1 + 1 + intLen + len(p.Content) + reserveLen
}

func (p *Submit) writeBody(w *writer) {
	w.fixedString(p.SPNumber, numberLen)
	w.fixedString(p.ChargeNumber, numberLen)
	w.byte(uint8(len(p.UserNumbers)))
	for _, n := range p.UserNumbers {
		w.fixedString(n, numberLen)
	}
	w.fixedString(p.CorporationID, corporationIDLen)
	w.fixedString(p.ServiceType, serviceTypeLen)
	w.byte(p.FeeType)
	w.decimal(p.FeeValue, feeValueLen)
	w.decimal(p.GivenValue, feeValueLen)
	w.byte(p.BillFlag)
	w.byte(p.MoToMtFlag)
	w.byte(p.Priority)
	w.fixedString(p.ExpireTime, timeFieldLen)
	w.fixedString(p.ScheduleTime, timeFieldLen)
	w.byte(p.ReportFlag)
	w.byte(p.TpPid)
	w.byte(p.TpUdhi)
	w.byte(p.MessageCoding)
	w.byte(p.MessageType)
	w.uint32(uint32(len(p.Content)))
	w.raw(p.Content)
	w.fixedString(p.Reserve, reserveLen)
}

func (p *Submit) readBody(r *reader) (err error) {
	if p.SPNumber, err = r.fixedString(numberLen); err != nil {
		return err
	}
	if p.ChargeNumber, err = r.fixedString(numberLen); err != nil {
		return err
	}
	count, err := r.byte()
	if err != nil {
		return err
	}
	p.UserNumbers = make([]string, count)
	for i := range p.UserNumbers {
		if p.UserNumbers[i], err = r.fixedString(numberLen); err != nil {
			return err
		}
	}
	if p.CorporationID, err = r.fixedString(corporationIDLen); err != nil {
		return err
	}
	if p.ServiceType, err = r.fixedString(serviceTypeLen); err != nil {
		return err
	}
	if p.FeeType, err = r.byte(); err != nil {
		return err
	}
	if p.FeeValue, err = r.decimal(feeValueLen); err != nil {
		return err
	}
	if p.GivenValue, err = r.decimal(feeValueLen); err != nil {
		return err
	}
	for _, f := range []*uint8{&p.BillFlag, &p.MoToMtFlag, &p.Priority} {
		if *f, err = r.byte(); err != nil {
			return err
		}
	}
	if p.ExpireTime, err = r.fixedString(timeFieldLen); err != nil {
		return err
	}
	if p.ScheduleTime, err = r.fixedString(timeFieldLen); err != nil {
		return err
	}
	for _, f := range []*uint8{&p.ReportFlag, &p.TpPid, &p.TpUdhi, &p.MessageCoding, &p.MessageType} {
		if *f, err = r.byte(); err != nil {
			return err
		}
	}
	if p.Content, err = readContent(r); err != nil {
		return err
	}
	p.Reserve, err = r.fixedString(reserveLen)
	return err
}

func (p *Submit) String() string {
	return format(p, fmt.Sprintf("(SPNumber=%s, ChargeNumber=%s, UserNumbers=[%s], CorporationID=%s, "+
		"ServiceType=%s, FeeType=%d, FeeValue=%d, GivenValue=%d, BillFlag=%d, MoToMtFlag=%d, Priority=%d, "+
		"ExpireTime=%s, ScheduleTime=%s, ReportFlag=%d, TpPid=0x%02x, TpUdhi=0x%02x, MessageCoding=0x%02x, "+
		"MessageType=0x%02x, MessageLength=%d, Reserve=%s)",
		p.SPNumber, p.ChargeNumber, strings.Join(p.UserNumbers, ","), p.CorporationID,
		p.ServiceType, p.FeeType, p.FeeValue, p.GivenValue, p.BillFlag, p.MoToMtFlag, p.Priority,
		p.ExpireTime, p.ScheduleTime, p.ReportFlag, p.TpPid, p.TpUdhi, p.MessageCoding,
		p.MessageType, len(p.Content), p.Reserve))
}

// Segments splits the content with s and returns one Submit per segment.
// The copies carry no header fields so that each gets its own sequence
// number when sent. TP-UDHI is set when more than one segment is produced.
func (p *Submit) Segments(s *Segmenter) []*Submit {
	parts := s.Split(p.Content)
	out := make([]*Submit, len(parts))
	for i, part := range parts {
		cp := *p
		cp.Header = Header{}
		cp.Content = part
		if len(parts) > 1 {
			cp.TpUdhi = TpUdhiHeader
		}
		out[i] = &cp
	}
	return out
}

// SubmitResp answers a Submit.
type SubmitResp struct {
	Header
	Result  uint8
	Reserve string
}

// CommandID implements PDU.
func (*SubmitResp) CommandID() CommandID { return CmdSubmitResp }

func (*SubmitResp) isResponse() {}

func (*SubmitResp) bodyLen() int { return resultBodyLen }

func (p *SubmitResp) writeBody(w *writer) { writeResult(w, p.Result, p.Reserve) }

func (p *SubmitResp) readBody(r *reader) (err error) {
	p.Result, p.Reserve, err = readResult(r)
	return err
}

func (p *SubmitResp) String() string { return format(p, formatResult(p.Result, p.Reserve)) }

func readContent(r *reader) ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	return r.raw(int(n))
}
