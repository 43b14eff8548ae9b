package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestListenerSinkIncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(ReplyOrphanTotal)

	sink := ListenerSink{}
	sink.IncOrphanReply()
	sink.IncLateCompletion()
	sink.ObserveReplyLatency(0.25)

	assert.Equal(t, before+1, testutil.ToFloat64(ReplyOrphanTotal))
}

func TestBridgeSinkIncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(UpstreamTimeoutTotal)

	sink := BridgeSink{}
	sink.IncUpstreamTimeout()
	sink.IncBrokerUnavailable()
	sink.ObserveRequestLatency(0.1)

	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamTimeoutTotal))
}
