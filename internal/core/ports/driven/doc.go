// Package driven defines the outbound ports: interfaces the core
// services depend on and adapters implement.
package driven
