package discord

// dedupSet remembers recently seen event ids so delivery replays from
// the platform do not get processed twice. When the set grows past max,
// the oldest half is evicted.
type dedupSet struct {
	max   int
	seen  map[string]struct{}
	order []string
}

func newDedupSet(max int) *dedupSet {
	if max < 2 {
		max = 2
	}
	return &dedupSet{
		max:  max,
		seen: make(map[string]struct{}, max),
	}
}

// Seen records id and reports whether it was already present.
func (d *dedupSet) Seen(id string) bool {
	if _, ok := d.seen[id]; ok {
		return true
	}

	d.seen[id] = struct{}{}
	d.order = append(d.order, id)

	if len(d.order) > d.max {
		cut := d.max / 2
		for _, old := range d.order[:cut] {
			delete(d.seen, old)
		}
		d.order = append([]string(nil), d.order[cut:]...)
	}
	return false
}
