// shared/registry/registrar.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ftotnem/astar-livesearch/shared/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ServiceRegistrar handles the self-registration and heartbeating of a service instance.
type ServiceRegistrar struct {
	redisClient redis.UniversalClient
	serviceType string
	cfg         *config.CommonConfig
	serviceID   string
	version     string
	logger      *zap.Logger
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewServiceRegistrar creates a registrar with a fresh instance ID.
func NewServiceRegistrar(redisClient redis.UniversalClient, serviceType, version string, cfg *config.CommonConfig, logger *zap.Logger) *ServiceRegistrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	serviceID := fmt.Sprintf("%s-%s", serviceType, uuid.New().String())

	return &ServiceRegistrar{
		redisClient: redisClient,
		serviceType: serviceType,
		cfg:         cfg,
		serviceID:   serviceID,
		version:     version,
		logger:      logger.With(zap.String("service_type", serviceType), zap.String("service_id", serviceID)),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start begins the service registration and heartbeating process in a goroutine.
func (sr *ServiceRegistrar) Start() {
	sr.logger.Info("starting service registrar",
		zap.String("ip", sr.cfg.ServiceIP), zap.Int("port", sr.cfg.ServicePort))
	go sr.run()
}

// Stop ends heartbeating and removes this instance from the registry.
func (sr *ServiceRegistrar) Stop() {
	close(sr.stopChan)
	<-sr.doneChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sr.redisClient.HDel(ctx, HashKey(sr.serviceType), sr.serviceID).Err(); err != nil {
		sr.logger.Error("failed to deregister on shutdown", zap.Error(err))
		return
	}
	sr.logger.Info("service registrar stopped and deregistered")
}

func (sr *ServiceRegistrar) run() {
	defer close(sr.doneChan)

	ticker := time.NewTicker(sr.cfg.HeartbeatInterval)
	defer ticker.Stop()

	sr.Heartbeat(context.Background())

	var cleanup <-chan time.Time
	if sr.cfg.RegistryCleanupInterval > 0 {
		cleanupTicker := time.NewTicker(sr.cfg.RegistryCleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	for {
		select {
		case <-ticker.C:
			sr.Heartbeat(context.Background())
		case <-cleanup:
			sr.Cleanup(context.Background())
		case <-sr.stopChan:
			return
		}
	}
}

// Heartbeat writes this instance's ServiceInfo with the current time.
func (sr *ServiceRegistrar) Heartbeat(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	info := ServiceInfo{
		ServiceID:   sr.serviceID,
		ServiceType: sr.serviceType,
		IP:          sr.cfg.ServiceIP,
		Port:        sr.cfg.ServicePort,
		LastSeen:    time.Now().UnixMilli(),
		Metadata:    map[string]string{"version": sr.version},
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		sr.logger.Error("failed to marshal service info", zap.Error(err))
		return
	}

	if err := sr.redisClient.HSet(ctx, HashKey(sr.serviceType), sr.serviceID, infoJSON).Err(); err != nil {
		sr.logger.Error("heartbeat failed", zap.Error(err))
		return
	}
	sr.logger.Debug("heartbeat sent")
}

// Cleanup removes malformed entries and instances whose heartbeat is older than the TTL.
func (sr *ServiceRegistrar) Cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hashKey := HashKey(sr.serviceType)
	results, err := sr.redisClient.HGetAll(ctx, hashKey).Result()
	if err != nil {
		sr.logger.Error("registry cleanup failed to list services", zap.Error(err))
		return
	}

	now := time.Now()
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		stale := false
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			sr.logger.Warn("deleting malformed registry entry", zap.String("instance_id", instanceID), zap.Error(err))
			stale = true
		} else if now.Sub(time.UnixMilli(info.LastSeen)) > sr.cfg.HeartbeatTTL {
			stale = true
		}
		if !stale {
			continue
		}
		if err := sr.redisClient.HDel(ctx, hashKey, instanceID).Err(); err != nil {
			sr.logger.Error("failed to delete stale registry entry", zap.String("instance_id", instanceID), zap.Error(err))
			continue
		}
		sr.logger.Info("removed stale registry entry", zap.String("instance_id", instanceID))
	}
}

// GetServiceID returns the unique ID assigned to this service instance.
func (sr *ServiceRegistrar) GetServiceID() string {
	return sr.serviceID
}

// GetServiceType returns the type of this service instance.
func (sr *ServiceRegistrar) GetServiceType() string {
	return sr.serviceType
}
