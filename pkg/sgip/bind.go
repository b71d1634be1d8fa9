package sgip

import "fmt"

const (
	loginNameLen     = 16
	loginPasswordLen = 16
	reserveLen       = 8
	resultBodyLen    = 1 + reserveLen
)

// Bind opens an authenticated session.
type Bind struct {
	Header
	LoginType     uint8
	LoginName     string
	LoginPassword string
	Reserve       string
}

// CommandID implements PDU.
func (*Bind) CommandID() CommandID { return CmdBind }

// CreateResponse implements Request.
func (p *Bind) CreateResponse() Response { return respond(p, &BindResp{}) }

func (*Bind) isRequest() {}

// Validate checks field widths.
func (p *Bind) Validate() error {
	if len(p.LoginName) > loginNameLen {
		return invalidField("login name longer than %d bytes", loginNameLen)
	}
	if len(p.LoginPassword) > loginPasswordLen {
		return invalidField("login password longer than %d bytes", loginPasswordLen)
	}
	return nil
}

func (*Bind) bodyLen() int { return 1 + loginNameLen + loginPasswordLen + reserveLen }

func (p *Bind) writeBody(w *writer) {
	w.byte(p.LoginType)
	w.fixedString(p.LoginName, loginNameLen)
	w.fixedString(p.LoginPassword, loginPasswordLen)
	w.fixedString(p.Reserve, reserveLen)
}

func (p *Bind) readBody(r *reader) (err error) {
	if p.LoginType, err = r.byte(); err != nil {
		return err
	}
	if p.LoginName, err = r.fixedString(loginNameLen); err != nil {
		return err
	}
	if p.LoginPassword, err = r.fixedString(loginPasswordLen); err != nil {
		return err
	}
	p.Reserve, err = r.fixedString(reserveLen)
	return err
}

func (p *Bind) String() string {
	return format(p, fmt.Sprintf("(LoginType=0x%02x, LoginName=%s, Reserve=%s)", p.LoginType, p.LoginName, p.Reserve))
}

// BindResp answers a Bind.
type BindResp struct {
	Header
	Result  uint8
	Reserve string
}

// CommandID implements PDU.
func (*BindResp) CommandID() CommandID { return CmdBindResp }

func (*BindResp) isResponse() {}

func (*BindResp) bodyLen() int { return resultBodyLen }

func (p *BindResp) writeBody(w *writer) { writeResult(w, p.Result, p.Reserve) }

func (p *BindResp) readBody(r *reader) (err error) {
	p.Result, p.Reserve, err = readResult(r)
	return err
}

func (p *BindResp) String() string { return format(p, formatResult(p.Result, p.Reserve)) }

// Unbind closes the session. It has no body.
type Unbind struct {
	Header
}

// CommandID implements PDU.
func (*Unbind) CommandID() CommandID { return CmdUnbind }

// CreateResponse implements Request.
func (p *Unbind) CreateResponse() Response { return respond(p, &UnbindResp{}) }

func (*Unbind) isRequest()             {}
func (*Unbind) bodyLen() int           { return 0 }
func (*Unbind) writeBody(*writer)      {}
func (*Unbind) readBody(*reader) error { return nil }
func (p *Unbind) String() string       { return format(p, "") }

// UnbindResp answers an Unbind. It has no body.
type UnbindResp struct {
	Header
}

// CommandID implements PDU.
func (*UnbindResp) CommandID() CommandID { return CmdUnbindResp }

func (*UnbindResp) isResponse()            {}
func (*UnbindResp) bodyLen() int           { return 0 }
func (*UnbindResp) writeBody(*writer)      {}
func (*UnbindResp) readBody(*reader) error { return nil }
func (p *UnbindResp) String() string       { return format(p, "") }

func writeResult(w *writer, result uint8, reserve string) {
	w.byte(result)
	w.fixedString(reserve, reserveLen)
}

func readResult(r *reader) (result uint8, reserve string, err error) {
	if result, err = r.byte(); err != nil {
		return
	}
	reserve, err = r.fixedString(reserveLen)
	return
}

func formatResult(result uint8, reserve string) string {
	return fmt.Sprintf("(Result=0x%02x, Reserve=%s)", result, reserve)
}
