package commands

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skycoin/sgip/pkg/session"
	"github.com/skycoin/sgip/pkg/sgip"
)

// printHandler logs inbound messages and delivery reports before
// acknowledging them.
type printHandler struct {
	*session.DefaultHandler
	once   sync.Once
	closed chan struct{}
}

func newPrintHandler(l logrus.FieldLogger) *printHandler {
	return &printHandler{
		DefaultHandler: &session.DefaultHandler{Log: l},
		closed:         make(chan struct{}),
	}
}

func (h *printHandler) ChannelUnexpectedlyClosed() {
	h.once.Do(func() { close(h.closed) })
}

func (h *printHandler) UnknownError(err error) {
	if session.IsChannelError(err) {
		h.ChannelUnexpectedlyClosed()
		return
	}
	h.DefaultHandler.UnknownError(err)
}

func (h *printHandler) ExpectedPduResponseReceived(resp *session.AsyncPduResponse) {
	h.Log.Debug(resp)
}

func (h *printHandler) PduRequestReceived(req sgip.Request) sgip.Response {
	switch p := req.(type) {
	case *sgip.Deliver:
		content := p.Content
		if p.TpUdhi != 0 {
			content = stripUDH(content)
		}
		text, err := decodeContent(p.MessageCoding, content)
		if err != nil {
			h.Log.WithError(err).Warn("Failed to decode message content")
			text = string(p.Content)
		}
		h.Log.WithFields(logrus.Fields{
			"from": p.UserNumber,
			"to":   p.SPNumber,
		}).Infof("Message: %s", text)
	case *sgip.Report:
		h.Log.WithFields(logrus.Fields{
			"user":       p.UserNumber,
			"submit_seq": p.SubmitSequenceNumber,
			"state":      p.State,
			"error":      p.ErrorCode,
		}).Info("Delivery report")
	case *sgip.Unbind:
		h.Log.Info("Gateway requested unbind")
	}
	return h.DefaultHandler.PduRequestReceived(req)
}
