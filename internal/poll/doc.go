// Package poll schedules aggregation cycles for a View.
//
// A View is idle until Activate is called. Activation creates a Session that
// runs one cycle immediately and then one per tick. Ticks that arrive while
// a cycle is still running are skipped rather than queued, so cycles of one
// session never overlap. Deactivate stops the ticker; a cycle already in
// flight finishes but its result is thrown away.
//
// Every completed cycle replaces the View's latest snapshot as a whole and
// bumps its Version. Readers call Latest or Subscribe and never observe a
// partially built snapshot.
package poll
