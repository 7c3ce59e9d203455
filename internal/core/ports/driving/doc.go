// Package driving defines the inbound ports exposed by the core
// services to user-facing adapters (the CLI).
package driving
