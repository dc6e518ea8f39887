// shared/cluster/assignment_manager.go
package cluster

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/stathat/consistent"
	"go.uber.org/zap"

	"github.com/Ftotnem/astar-livesearch/shared/registry"
)

// ServiceAssignmentManager decides which live instance owns a given key by
// consistent hashing over the registry's active members.
type ServiceAssignmentManager struct {
	registryClient   *registry.RegistryClient
	serviceRegistrar *registry.ServiceRegistrar
	updateInterval   time.Duration
	logger           *zap.Logger

	chMux          sync.RWMutex
	consistentHash *consistent.Consistent

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServiceAssignmentManager seeds the ring with this instance only.
func NewServiceAssignmentManager(
	registryClient *registry.RegistryClient,
	serviceRegistrar *registry.ServiceRegistrar,
	updateInterval time.Duration,
	logger *zap.Logger,
) *ServiceAssignmentManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	sam := &ServiceAssignmentManager{
		registryClient:   registryClient,
		serviceRegistrar: serviceRegistrar,
		updateInterval:   updateInterval,
		logger:           logger,
		consistentHash:   consistent.New(),
		ctx:              ctx,
		cancel:           cancel,
	}
	sam.consistentHash.Add(serviceRegistrar.GetServiceID())
	return sam
}

// Start refreshes the ring every updateInterval until Stop. Run it in a goroutine.
func (sam *ServiceAssignmentManager) Start() {
	ticker := time.NewTicker(sam.updateInterval)
	defer ticker.Stop()

	sam.Refresh()
	for {
		select {
		case <-sam.ctx.Done():
			sam.logger.Info("assignment manager stopped")
			return
		case <-ticker.C:
			sam.Refresh()
		}
	}
}

// Stop gracefully shuts down the ServiceAssignmentManager.
func (sam *ServiceAssignmentManager) Stop() {
	sam.cancel()
}

// Refresh rebuilds the ring when the set of active members has changed.
func (sam *ServiceAssignmentManager) Refresh() {
	serviceType := sam.serviceRegistrar.GetServiceType()
	activeServices, err := sam.registryClient.GetActiveServices(sam.ctx, serviceType)
	if err != nil {
		sam.logger.Error("failed to get active services", zap.String("service_type", serviceType), zap.Error(err))
		return
	}

	members := make([]string, 0, len(activeServices))
	for id := range activeServices {
		members = append(members, id)
	}
	if len(members) == 0 {
		// our own heartbeat has not landed yet
		return
	}
	slices.Sort(members)

	sam.chMux.Lock()
	defer sam.chMux.Unlock()

	current := sam.consistentHash.Members()
	slices.Sort(current)
	if slices.Equal(members, current) {
		return
	}

	ring := consistent.New()
	for _, member := range members {
		ring.Add(member)
	}
	sam.consistentHash = ring
	sam.logger.Info("hash ring updated", zap.String("service_type", serviceType), zap.Strings("members", members))
}

// IsResponsible reports whether this instance owns entityID.
func (sam *ServiceAssignmentManager) IsResponsible(entityID string) (bool, error) {
	sam.chMux.RLock()
	defer sam.chMux.RUnlock()

	if len(sam.consistentHash.Members()) == 0 {
		return false, fmt.Errorf("consistent hash ring is empty for service type %s", sam.serviceRegistrar.GetServiceType())
	}

	owner, err := sam.consistentHash.Get(entityID)
	if err != nil {
		return false, fmt.Errorf("failed to get responsible service for entity '%s': %w", entityID, err)
	}
	return owner == sam.serviceRegistrar.GetServiceID(), nil
}
