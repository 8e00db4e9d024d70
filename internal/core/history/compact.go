package history

import (
	"math"
	"time"
)

// DefaultDivisor sets how quickly retained snapshots thin out with age: the
// next snapshot kept behind one of age d is about d/DefaultDivisor older.
const DefaultDivisor = 12

// Compact thins out log so that recent entries are kept densely and older
// entries with gaps that grow with their age. The newest and the oldest
// entries are always kept. log must be in chronological order.
func Compact[S any](log []Entry[S], now time.Time) []Entry[S] {
	return CompactWith(log, now, DefaultDivisor)
}

// CompactWith is Compact with an explicit divisor.
func CompactWith[S any](log []Entry[S], now time.Time, divisor float64) []Entry[S] {
	if len(log) <= 2 {
		return log
	}
	if divisor <= 0 {
		divisor = DefaultDivisor
	}

	cursor := len(log) - 1
	kept := []int{cursor}
	// remaining entries are log[0:next], scanned newest to oldest
	next := cursor
	for next > 0 {
		ct := log[cursor].Time
		target := ct.Add(-time.Duration(float64(now.Sub(ct)) / divisor))

		// A: oldest remaining entry strictly newer than target
		a, distA := -1, math.Inf(1)
		for i := next - 1; i >= 0 && log[i].Time.After(target); i-- {
			a = i
		}
		if a >= 0 {
			distA = float64(log[a].Time.Sub(target))
		}

		// B: newest remaining entry at or before target, else the oldest
		b := 0
		for i := next - 1; i >= 0; i-- {
			if !log[i].Time.After(target) {
				b = i
				break
			}
		}
		distB := float64(target.Sub(log[b].Time))

		chosen := b
		if distA < distB {
			chosen = a
		}
		kept = append(kept, chosen)
		cursor = chosen
		next = chosen
	}

	if len(kept) == len(log) {
		return log
	}
	out := make([]Entry[S], 0, len(kept))
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, log[kept[i]])
	}
	return out
}
