package publish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
)

func TestNopAcceptsEverything(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), domain.Record{Progress: 50}))
	p.Close()
}

// A misconfigured broker must fail at startup, not on the first frame.
func TestNewMQTTUnreachableBrokerFailsFast(t *testing.T) {
	start := time.Now()
	_, err := NewMQTT(MQTTConfig{
		BrokerURL:      "tcp://127.0.0.1:1",
		Topic:          "ender_v3ke/status",
		ConnectTimeout: 500 * time.Millisecond,
	}, zap.NewNop())

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
