// storefront/services/health_service.go

package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cartstore"
)

// HealthCheckService reports SERVING while the cart storage answers a ping.
type HealthCheckService struct {
	healthpb.UnimplementedHealthServer
	storage  cartstore.Storage
	interval time.Duration
	log      logrus.FieldLogger
}

// NewHealthCheckService returns a health server over storage. Watch re-checks
// every interval.
func NewHealthCheckService(storage cartstore.Storage, interval time.Duration, log logrus.FieldLogger) *HealthCheckService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HealthCheckService{
		storage:  storage,
		interval: interval,
		log:      log.WithField("component", "health"),
	}
}

func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	return &healthpb.HealthCheckResponse{Status: h.status(ctx)}, nil
}

// Watch sends the current status and then every change until the client
// goes away.
func (h *HealthCheckService) Watch(req *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	ctx := stream.Context()
	last := h.status(ctx)
	if err := stream.Send(&healthpb.HealthCheckResponse{Status: last}); err != nil {
		return err
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := h.status(ctx)
			if st == last {
				continue
			}
			h.log.WithFields(logrus.Fields{"from": last.String(), "to": st.String()}).Info("health status changed")
			last = st
			if err := stream.Send(&healthpb.HealthCheckResponse{Status: st}); err != nil {
				return err
			}
		}
	}
}

func (h *HealthCheckService) status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if h.storage.Ping(ctx) {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
