package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProber reports the serving status of the CRM server.
type HealthProber interface {
	Probe(ctx context.Context) (string, error)
}

// GRPCProber queries the standard gRPC health service.
type GRPCProber struct {
	addr    string
	service string
	timeout time.Duration
}

func NewGRPCProber(addr, service string, timeout time.Duration) *GRPCProber {
	return &GRPCProber{addr: addr, service: service, timeout: timeout}
}

func (p *GRPCProber) Probe(ctx context.Context) (string, error) {
	conn, err := grpc.NewClient(p.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", errors.Wrap(err, "dial health service")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return "", errors.Wrap(err, "health check")
	}
	return resp.GetStatus().String(), nil
}
