// Package store keeps the latest task snapshot per job slot and fans updates
// out to subscribers.
//
// The relay server writes a [Snapshot] from each tracker's observer and
// serves them over REST and Server-Sent Events. Slow subscribers miss
// updates rather than block the polling goroutine that produced them.
package store
