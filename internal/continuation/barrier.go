package continuation

// Ticket identifies one registered pause.
type Ticket struct {
	seq uint64
	key string
}

func (t Ticket) Key() string { return t.key }

// Barrier counts outstanding pauses. A movement may continue only when no
// ticket is outstanding. Barrier is not safe for concurrent use.
type Barrier struct {
	next        uint64
	outstanding map[uint64]string
}

// Register adds a pause. key may be empty for callback-released pauses.
func (b *Barrier) Register(key string) Ticket {
	if b.outstanding == nil {
		b.outstanding = make(map[uint64]string)
	}
	b.next++
	b.outstanding[b.next] = key
	return Ticket{seq: b.next, key: key}
}

// Release removes a ticket. It reports whether the ticket was outstanding.
func (b *Barrier) Release(t Ticket) bool {
	if _, ok := b.outstanding[t.seq]; !ok {
		return false
	}
	delete(b.outstanding, t.seq)
	return true
}

// ReleaseKey removes every ticket registered with key.
func (b *Barrier) ReleaseKey(key string) bool {
	released := false
	for seq, k := range b.outstanding {
		if k == key {
			delete(b.outstanding, seq)
			released = true
		}
	}
	return released
}

// Pending returns the number of outstanding tickets.
func (b *Barrier) Pending() int { return len(b.outstanding) }

// Outstanding counts outstanding tickets per key.
func (b *Barrier) Outstanding() map[string]int {
	out := make(map[string]int, len(b.outstanding))
	for _, k := range b.outstanding {
		out[k]++
	}
	return out
}

func (b *Barrier) clear() {
	b.outstanding = nil
}
