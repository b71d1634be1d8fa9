package sgip

import "fmt"

// Deliver carries a mobile originated message from the gateway to the SP.
type Deliver struct {
	Header
	UserNumber    string
	SPNumber      string
	TpPid         uint8
	TpUdhi        uint8
	MessageCoding uint8
	MessageType   uint8
	Content       []byte
	Reserve       string
}

// CommandID implements PDU.
func (*Deliver) CommandID() CommandID { return CmdDeliver }

// CreateResponse implements Request.
func (p *Deliver) CreateResponse() Response { return respond(p, &DeliverResp{}) }

func (*Deliver) isRequest() {}

func (p *Deliver) bodyLen() int {
	return numberLen + numberLen + 1 + 1 + 1 + 1 + intLen + len(p.Content) + reserveLen
}

func (p *Deliver) writeBody(w *writer) {
	w.fixedString(p.UserNumber, numberLen)
	w.fixedString(p.SPNumber, numberLen)
	w.byte(p.TpPid)
	w.byte(p.TpUdhi)
	w.byte(p.MessageCoding)
	w.byte(p.MessageType)
	w.uint32(uint32(len(p.Content)))
	w.raw(p.Content)
	w.fixedString(p.Reserve, reserveLen)
}

func (p *Deliver) readBody(r *reader) (err error) {
	if p.UserNumber, err = r.fixedString(numberLen); err != nil {
		return err
	}
	if p.SPNumber, err = r.fixedString(numberLen); err != nil {
		return err
	}
	for _, f := range []*uint8{&p.TpPid, &p.TpUdhi, &p.MessageCoding, &p.MessageType} {
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

func (p *Deliver) String() string {
	return format(p, fmt.Sprintf("(UserNumber=%s, SPNumber=%s, TpPid=0x%02x, TpUdhi=0x%02x, "+
		"MessageCoding=0x%02x, MessageType=0x%02x, MessageLength=%d, Reserve=%s)",
		p.UserNumber, p.SPNumber, p.TpPid, p.TpUdhi, p.MessageCoding, p.MessageType, len(p.Content), p.Reserve))
}

// DeliverResp answers a Deliver.
type DeliverResp struct {
	Header
	Result  uint8
	Reserve string
}

// CommandID implements PDU.
func (*DeliverResp) CommandID() CommandID { return CmdDeliverResp }

func (*DeliverResp) isResponse() {}

func (*DeliverResp) bodyLen() int { return resultBodyLen }

func (p *DeliverResp) writeBody(w *writer) { writeResult(w, p.Result, p.Reserve) }

func (p *DeliverResp) readBody(r *reader) (err error) {
	p.Result, p.Reserve, err = readResult(r)
	return err
}

func (p *DeliverResp) String() string { return format(p, formatResult(p.Result, p.Reserve)) }
