package state

// Delta is the set of writes a node returns from one execution. Keys keep
// insertion order so merges are deterministic.
type Delta struct {
	values     map[string]any
	order      []string
	confidence map[string]Confidence
}

func NewDelta() *Delta {
	return &Delta{
		values:     map[string]any{},
		confidence: map[string]Confidence{},
	}
}

// Put records a typed write in the delta.
func Put[T any](d *Delta, k Key[T], v T) {
	d.PutRaw(k.name, v)
}

func (d *Delta) PutRaw(name string, v any) {
	if _, ok := d.values[name]; !ok {
		d.order = append(d.order, name)
	}
	d.values[name] = v
}

// Annotate attaches a confidence record to a key in this delta. The record
// replaces any prior one for the key when merged.
func (d *Delta) Annotate(name string, c Confidence) {
	d.confidence[name] = c
}

func (d *Delta) GetRaw(name string) (any, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Keys returns delta key names in insertion order.
func (d *Delta) Keys() []string {
	return append([]string{}, d.order...)
}

func (d *Delta) Len() int { return len(d.values) }
