package session

import (
	"fmt"
	"time"

	"github.com/skycoin/sgip/pkg/sgip"
)

// AsyncPduResponse is handed to Handler.ExpectedPduResponseReceived for
// responses to requests nobody waited on.
type AsyncPduResponse struct {
	Request        sgip.Request
	Response       sgip.Response
	WindowSize     int
	WindowWaitTime time.Duration
	ResponseTime   time.Duration
}

func newAsyncPduResponse(f *Future) *AsyncPduResponse {
	resp, _ := f.Response()
	return &AsyncPduResponse{
		Request:        f.Request(),
		Response:       resp,
		WindowSize:     f.WindowSize(),
		WindowWaitTime: f.OfferToAccept(),
		ResponseTime:   f.AcceptToDone(),
	}
}

// EstimatedProcessingTime divides the response time by the window size at
// acceptance. It is 0 when either is 0.
func (r *AsyncPduResponse) EstimatedProcessingTime() time.Duration {
	if r.ResponseTime <= 0 || r.WindowSize <= 0 {
		return 0
	}
	return r.ResponseTime / time.Duration(r.WindowSize)
}

func (r *AsyncPduResponse) String() string {
	return fmt.Sprintf("sgip_async_resp: seq [%d] windowSize [%d] windowWaitTime [%s] responseTime [%s] estProcessingTime [%s]",
		r.Request.SequenceNumber(), r.WindowSize, r.WindowWaitTime, r.ResponseTime, r.EstimatedProcessingTime())
}
