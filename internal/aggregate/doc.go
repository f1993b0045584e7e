// Package aggregate computes the dashboard summary metrics.
//
// Each Collect call issues four independent queries (agent listing, workflow
// listing, running executions and the monitoring overview) and derives one
// counter from each. The Aggregator remembers the last successful value per
// metric so a single failing upstream only freezes its own number.
package aggregate
