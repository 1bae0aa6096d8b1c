package entities

import "sort"

// OrderForSelection sorts connections for primary/secondary selection:
// primaries first, then by descending priority, then by name for a stable
// order. The input slice is not modified.
func OrderForSelection(conns []*Connection) []*Connection {
	out := append([]*Connection(nil), conns...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary() != out[j].IsPrimary() {
			return out[i].IsPrimary()
		}
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() > out[j].Priority()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// PickPrimary returns the best enabled connection, or nil when none is
// enabled.
func PickPrimary(conns []*Connection) *Connection {
	for _, c := range OrderForSelection(conns) {
		if c.Enabled() {
			return c
		}
	}
	return nil
}
