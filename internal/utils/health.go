package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  []Service `json:"services"`
	Clients   int       `json:"clients"`
	Messages  int       `json:"messages"`
}

type Service struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Pinger is any backing service that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker pings whichever backends are configured. Nil fields are
// skipped so a file-only deployment reports just the room counters.
type HealthChecker struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Blob     Pinger
	Clients  func() int
	Messages func() int
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	var services []Service
	overallStatus := StatusHealthy

	probe := func(name string, ping func(context.Context) error) {
		service := Service{Name: name}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			service.Status = "down"
			service.Message = err.Error()
			overallStatus = StatusDegraded
		} else {
			service.Status = "up"
		}
		services = append(services, service)
	}

	if h.DB != nil {
		probe("PostgreSQL", func(ctx context.Context) error {
			sqlDB, err := h.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}

	if h.Redis != nil {
		probe("Redis", func(ctx context.Context) error {
			return h.Redis.Ping(ctx).Err()
		})
	}

	if h.Blob != nil {
		probe("MinIO", h.Blob.Ping)
	}

	status := HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
	if h.Clients != nil {
		status.Clients = h.Clients()
	}
	if h.Messages != nil {
		status.Messages = h.Messages()
	}
	return status
}
