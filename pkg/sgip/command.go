// Package sgip implements the SGIP 1.2 wire format: PDU types, the binary
// codec and the short message segmentation helper.
package sgip

import "fmt"

const (
	// HeaderLen is the fixed size of every PDU header:
	// commandLength(4), commandId(4), sourceNodeId(4), timestamp(4), sequenceNumber(4).
	HeaderLen = 20

	// MaxFrameLen bounds the commandLength accepted from the wire.
	MaxFrameLen = 0x100000

	intLen = 4
)

// CommandID identifies the PDU variant. Responses share the low 31 bits
// with their request and have the top bit set.
type CommandID uint32

// ResponseMask is the bit distinguishing responses from requests.
const ResponseMask = CommandID(0x80000000)

// Command IDs.
const (
	CmdBind          = CommandID(0x1)
	CmdUnbind        = CommandID(0x2)
	CmdSubmit        = CommandID(0x3)
	CmdDeliver       = CommandID(0x4)
	CmdReport        = CommandID(0x5)
	CmdAddSP         = CommandID(0x6)
	CmdModifySP      = CommandID(0x7)
	CmdDeleteSP      = CommandID(0x8)
	CmdQueryRoute    = CommandID(0x9)
	CmdAddTeleSeg    = CommandID(0xa)
	CmdModifyTeleSeg = CommandID(0xb)
	CmdDeleteTeleSeg = CommandID(0xc)
	CmdAddSMG        = CommandID(0xd)
	CmdModifySMG     = CommandID(0xe)
	CmdDeleteSMG     = CommandID(0xf)
	CmdCheckUser     = CommandID(0x10)
	CmdUserRpt       = CommandID(0x11)
	CmdTrace         = CommandID(0x1000)

	CmdBindResp    = CmdBind | ResponseMask
	CmdUnbindResp  = CmdUnbind | ResponseMask
	CmdSubmitResp  = CmdSubmit | ResponseMask
	CmdDeliverResp = CmdDeliver | ResponseMask
	CmdReportResp  = CmdReport | ResponseMask
)

var commandNames = map[CommandID]string{
	CmdBind:          "BIND",
	CmdUnbind:        "UNBIND",
	CmdSubmit:        "SUBMIT",
	CmdDeliver:       "DELIVER",
	CmdReport:        "REPORT",
	CmdAddSP:         "ADD_SP",
	CmdModifySP:      "MODIFY_SP",
	CmdDeleteSP:      "DELETE_SP",
	CmdQueryRoute:    "QUERY_ROUTE",
	CmdAddTeleSeg:    "ADD_TELESEG",
	CmdModifyTeleSeg: "MODIFY_TELESEG",
	CmdDeleteTeleSeg: "DELETE_TELESEG",
	CmdAddSMG:        "ADD_SMG",
	CmdModifySMG:     "MODIFY_SMG",
	CmdDeleteSMG:     "DELETE_SMG",
	CmdCheckUser:     "CHECK_USER",
	CmdUserRpt:       "USER_RPT",
	CmdTrace:         "TRACE",
}

// IsRequest reports whether the id belongs to a request PDU.
func (id CommandID) IsRequest() bool { return id&ResponseMask == 0 }

// IsResponse reports whether the id belongs to a response PDU.
func (id CommandID) IsResponse() bool { return id&ResponseMask == ResponseMask }

// String implements fmt.Stringer
func (id CommandID) String() string {
	name, ok := commandNames[id&^ResponseMask]
	if !ok {
		return fmt.Sprintf("UNKNOWN:0x%08x", uint32(id))
	}
	if id.IsResponse() {
		return name + "_RESP"
	}
	return name
}

// IsRequestCommandID reports whether the top bit of id is clear.
func IsRequestCommandID(id uint32) bool { return CommandID(id).IsRequest() }

// IsResponseCommandID reports whether the top bit of id is set.
func IsResponseCommandID(id uint32) bool { return CommandID(id).IsResponse() }

// Result codes carried by response PDUs.
const (
	ResultOK                    = 0x0
	ResultInvalidLogin          = 0x1
	ResultDuplicateLogin        = 0x2
	ResultTooManyConnection     = 0x3
	ResultInvalidLoginType      = 0x4
	ResultInvalidParameter      = 0x5
	ResultInvalidNumber         = 0x6
	ResultInvalidCommandID      = 0x7
	ResultInvalidMessageLength  = 0x8
	ResultInvalidSequenceNumber = 0x9
	ResultInvalidGNSOperator    = 0xa
	ResultNodeBusy              = 0xb
	ResultNoBusinessCode        = 0xd
)

// Login types used in Bind.
const (
	LoginSPToSMG  = 0x1
	LoginSMGToSP  = 0x2
	LoginSMGToSMG = 0x3
	LoginSMGToGNS = 0x4
	LoginGNSToSMG = 0x5
	LoginGNSToGNS = 0x6
	LoginTest     = 0xb
)

// Submit field values.
const (
	BillFlagReceivable = 0
	BillFlagReceived   = 1

	MoToMtFirstMo      = 0
	MoToMtNonFirstMo   = 1
	MoToMtNonMo        = 2
	MoToMtSystemReport = 3

	ReportFlagErrorOnly = 0
	ReportFlagAlways    = 1
	ReportFlagNone      = 2
	ReportFlagFeeOnly   = 3

	TpPidNormal = 0

	TpUdhiNone   = 0
	TpUdhiHeader = 1

	CodingASCII  = 0x0
	CodingBinary = 0x4
	CodingUCS2   = 0x8
	CodingGBK    = 0xf

	MessageTypeSMS = 0

	// DefaultChargeNumber makes the SP pay for the message.
	DefaultChargeNumber = "000000000000000000000"

	maxUserCount = 100
	maxFeeValue  = 99999
	maxPriority  = 9
)
