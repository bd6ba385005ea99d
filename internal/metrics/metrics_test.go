package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(DepositsTotal.WithLabelValues("PLASTIC", "MANUAL"))
	DepositsTotal.WithLabelValues("PLASTIC", "MANUAL").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(DepositsTotal.WithLabelValues("PLASTIC", "MANUAL")))
}

func TestObserveRequestUnmatchedRoute(t *testing.T) {
	ObserveRequest("GET", "", 404, 5*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), 1)
}
