// Package cache provides a bounded in-memory cache for immutable records.
package cache

// Cache holds values that never change once written, such as settled wagers.
type Cache interface {
	// Get returns (value, true) if present.
	Get(key string) (any, bool)

	// Set admits a value. Admission is asynchronous and may be refused under pressure.
	Set(key string, value any) bool

	// Delete removes a value.
	Delete(key string)

	// Wait blocks until pending Set calls are applied.
	Wait()

	// Clear removes all values.
	Clear()

	// Close releases resources.
	Close()
}
