// shared/registry/constants.go
package registry

import "fmt"

// RedisRegistryHashPrefix prefixes the hash holding one service type's instances,
// e.g. "services:hunt-service".
const RedisRegistryHashPrefix = "services:"

// HashKey returns the registry hash for a service type.
func HashKey(serviceType string) string {
	return fmt.Sprintf("%s%s", RedisRegistryHashPrefix, serviceType)
}
