package honeycomb

import (
	"testing"
	"time"

	"github.com/honeycombio/libhoney-go/transmission"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestMultiSender(t *testing.T) {
	a := &transmission.MockSender{}
	b := &transmission.MockSender{}
	both := []*transmission.MockSender{a, b}

	multi := &MultiSender{Senders: []transmission.Sender{a, b}}

	assert.Check(t, multi.Start())
	for _, mock := range both {
		assert.Check(t, cmp.Equal(1, mock.Started))
	}

	ev := &transmission.Event{
		Timestamp:  time.Time{}.Add(time.Second),
		SampleRate: 2,
		Dataset:    "relayd-test",
		Data:       map[string]interface{}{"name": "start-relay"},
	}
	multi.Add(ev)
	for _, mock := range both {
		assert.Assert(t, cmp.Len(mock.Events(), 1))
		assert.Check(t, cmp.DeepEqual(*ev, *mock.Events()[0]))
	}

	// Responses only flow back from the first sender.
	assert.Check(t, cmp.Equal(a.TxResponses(), multi.TxResponses()))
	assert.Check(t, b.TxResponses() != multi.TxResponses())
	assert.Check(t, !multi.SendResponse(transmission.Response{}))

	assert.Check(t, multi.Stop())
	for _, mock := range both {
		assert.Check(t, cmp.Equal(1, mock.Stopped))
	}
}

func TestMultiSender_RefusesToStartEmpty(t *testing.T) {
	multi := &MultiSender{}
	assert.Check(t, cmp.ErrorContains(multi.Start(), "no senders configured"))
}
