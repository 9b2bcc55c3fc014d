package grpc

import (
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// dependencyService names the health entry of one checked dependency.
func dependencyService(name string) string {
	return "bigdatakeeper." + name
}

func servingStatus(status string) healthpb.HealthCheckResponse_ServingStatus {
	if status == health.StatusOK {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// apply publishes a report: the overall status under "" and ServiceName,
// and one entry per dependency.
func (s *GRPCServer) apply(r health.Report) {
	overall := servingStatus(r.Status)
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(ServiceName, overall)

	for name, res := range r.Checks {
		s.health.SetServingStatus(dependencyService(name), servingStatus(res.Status))
	}
}
