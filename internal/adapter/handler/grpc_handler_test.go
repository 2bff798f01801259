package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func checkStatus(t *testing.T, h *GRPCHandler) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthServiceName})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestGRPCHandler_FollowsStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &memStore{}
	h := NewGRPCHandler(store, logger)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, h))

	h.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, h))

	store.down = errors.New("connection refused")
	h.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, h))
}

func TestGRPCHandler_WatchStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewGRPCHandler(&memStore{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return checkStatus(t, h) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
