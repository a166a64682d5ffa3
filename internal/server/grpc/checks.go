package grpc

import (
	"context"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name covering the whole process.
const ServiceName = "petmatch"

const checkTimeout = 5 * time.Second

// Check is a named dependency check. Each check is exposed as its own health
// service, "petmatch.<name>".
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// runChecks runs every check and publishes the results. The overall status is
// SERVING only when all checks pass.
func (s *GRPCServer) runChecks(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING

	for _, c := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Run(cctx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
			s.logger.Warn(ctx, "health check failed", "check", c.Name, "error", err)
		}
		s.health.SetServingStatus(ServiceName+"."+c.Name, st)
	}

	s.health.SetServingStatus(ServiceName, overall)
	s.health.SetServingStatus("", overall)
}
