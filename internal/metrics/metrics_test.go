package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sardor8866/festery/internal/session"
)

func TestCollector_Lifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	ctx := context.Background()

	v := session.View{Game: "tower", Stake: 100}
	c.SessionStarted(ctx, v)
	c.SessionStarted(ctx, v)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.started.WithLabelValues("tower")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.active.WithLabelValues("tower")))

	c.SessionSettled(ctx, v, session.Outcome{Kind: session.OutcomeCashedOut, Credited: 150})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.settled.WithLabelValues("tower", "cashed_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.active.WithLabelValues("tower")))

	// Recovered sessions were never active in this process.
	c.SessionSettled(ctx, session.View{Game: "tower", Recovered: true}, session.Outcome{Kind: session.OutcomeRefunded, Credited: 100})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.active.WithLabelValues("tower")))

	c.CreditRetried("tower")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("tower")))

	assert.Equal(t, 2, testutil.CollectAndCount(c.credited))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
