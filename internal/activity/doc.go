// Package activity formats the monitoring service's recent events into the
// bounded, relative-time-stamped feed shown on the dashboard.
package activity
