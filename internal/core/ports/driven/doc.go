// Package driven defines the outbound ports consumed by the core
// services: the content source, the transformer, the index service
// client and the persistence stores. Adapters implement these
// interfaces.
package driven
