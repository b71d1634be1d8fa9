package session

import (
	"github.com/sirupsen/logrus"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/sgip/pkg/sgip"
)

// Handler receives the events of a session. Callbacks run on the
// transport read loop, or on the handler pool for inbound requests, and
// must not block for long.
type Handler interface {
	// ChannelUnexpectedlyClosed is called when the transport goes down
	// while the session is neither unbinding nor closed.
	ChannelUnexpectedlyClosed()

	// PduRequestReceived returns the response to send back, or nil to
	// send nothing.
	PduRequestReceived(req sgip.Request) sgip.Response

	// PduRequestExpired is called for requests dropped by the window
	// monitor.
	PduRequestExpired(req sgip.Request)

	// ExpectedPduResponseReceived is called for responses to requests
	// sent without waiting.
	ExpectedPduResponseReceived(resp *AsyncPduResponse)

	// UnexpectedPduResponseReceived is called for responses matching no
	// outstanding request, or arriving after the caller gave up.
	UnexpectedPduResponseReceived(resp sgip.Response)

	UnrecoverablePduError(err error)
	RecoverablePduError(err error)
	UnknownError(err error)
}

// Listener may be implemented by a Handler to observe raw traffic. A false
// return drops the PDU.
type Listener interface {
	// PduReceived is called for every decoded inbound PDU before routing.
	PduReceived(pdu sgip.PDU) bool

	// PduDispatch is called for every outbound PDU before it is written.
	PduDispatch(pdu sgip.PDU) bool
}

// DefaultHandler logs every event. It acknowledges inbound requests with a
// success response so the gateway does not retry them.
type DefaultHandler struct {
	Log logrus.FieldLogger
}

// NewDefaultHandler returns a DefaultHandler logging to the "session-handler"
// logger.
func NewDefaultHandler() *DefaultHandler {
	return &DefaultHandler{Log: logging.MustGetLogger("session-handler")}
}

func (h *DefaultHandler) logger() logrus.FieldLogger {
	if h.Log == nil {
		return log
	}
	return h.Log
}

// ChannelUnexpectedlyClosed implements Handler.
func (h *DefaultHandler) ChannelUnexpectedlyClosed() {
	h.logger().Info("Default handling is to discard an unexpected channel closed")
}

// PduRequestReceived implements Handler.
func (h *DefaultHandler) PduRequestReceived(req sgip.Request) sgip.Response {
	h.logger().WithField("pdu", req).Debug("Default handling is to acknowledge request")
	switch req.(type) {
	case *sgip.UnknownRequest:
		return nil
	default:
		return req.CreateResponse()
	}
}

// PduRequestExpired implements Handler.
func (h *DefaultHandler) PduRequestExpired(req sgip.Request) {
	h.logger().WithField("pdu", req).Warn("Default handling is to discard expired request")
}

// ExpectedPduResponseReceived implements Handler.
func (h *DefaultHandler) ExpectedPduResponseReceived(resp *AsyncPduResponse) {
	h.logger().Warnf("Default handling is to discard expected response: %s", resp)
}

// UnexpectedPduResponseReceived implements Handler.
func (h *DefaultHandler) UnexpectedPduResponseReceived(resp sgip.Response) {
	h.logger().WithField("pdu", resp).Warn("Default handling is to discard unexpected response")
}

// UnrecoverablePduError implements Handler.
func (h *DefaultHandler) UnrecoverablePduError(err error) {
	h.logger().WithError(err).Warn("Default handling is to discard unrecoverable exception")
}

// RecoverablePduError implements Handler.
func (h *DefaultHandler) RecoverablePduError(err error) {
	h.logger().WithError(err).Warn("Default handling is to discard recoverable exception")
}

// UnknownError implements Handler.
func (h *DefaultHandler) UnknownError(err error) {
	if IsChannelError(err) {
		h.ChannelUnexpectedlyClosed()
		return
	}
	h.logger().WithError(err).Warn("Default handling is to discard unknown error")
}

// PduReceived implements Listener.
func (h *DefaultHandler) PduReceived(sgip.PDU) bool { return true }

// PduDispatch implements Listener.
func (h *DefaultHandler) PduDispatch(sgip.PDU) bool { return true }
