package sgip

// UnknownRequest stands in for a request whose command id has no
// registered variant. Only the header is decoded.
type UnknownRequest struct {
	Header
	ID CommandID
}

// CommandID implements PDU.
func (p *UnknownRequest) CommandID() CommandID { return p.ID }

// CreateResponse implements Request.
func (p *UnknownRequest) CreateResponse() Response {
	return respond(p, &UnknownResponse{ID: p.ID | ResponseMask})
}

func (*UnknownRequest) isRequest()             {}
func (*UnknownRequest) bodyLen() int           { return 0 }
func (*UnknownRequest) writeBody(*writer)      {}
func (*UnknownRequest) readBody(*reader) error { return nil }
func (p *UnknownRequest) String() string       { return format(p, "") }

// UnknownResponse stands in for a response whose command id has no
// registered variant. Only the header is decoded.
type UnknownResponse struct {
	Header
	ID CommandID
}

// CommandID implements PDU.
func (p *UnknownResponse) CommandID() CommandID { return p.ID }

func (*UnknownResponse) isResponse()            {}
func (*UnknownResponse) bodyLen() int           { return 0 }
func (*UnknownResponse) writeBody(*writer)      {}
func (*UnknownResponse) readBody(*reader) error { return nil }
func (p *UnknownResponse) String() string       { return format(p, "") }
