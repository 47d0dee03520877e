package index

// Rand is the linear congruential generator used to pick cluster hypotheses. The same seed always
// produces the same sequence, which makes index construction reproducible.
type Rand struct {
	seed int32
}

// randMax is the largest value Next returns.
const randMax = 0x7FFF

// NewRand creates a generator with the given seed.
func NewRand(seed int) *Rand {
	return &Rand{seed: int32(seed)}
}

// Next advances the generator and returns a value in [0, 32767].
func (r *Rand) Next() int {
	r.seed = 214013*r.seed + 2531011
	return int((r.seed >> 16) & randMax)
}

// ArrayShuffle swaps each of the first pickK entries of v with a random entry of v.
func (r *Rand) ArrayShuffle(v []int, pickK int) {
	n := len(v)
	for i := 0; i < pickK && i < n; i++ {
		k := r.Next() % n
		v[i], v[k] = v[k], v[i]
	}
}
