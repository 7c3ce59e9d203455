// Package domain contains the core business types for kbsync.
// These types are pure values with no dependency on adapters or
// infrastructure.
package domain
