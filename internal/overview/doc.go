// Package overview composes the health prober, the metrics aggregator and
// the activity formatter into the cycle function driven by package poll.
package overview
