package noise

// Hash3 scrambles three lattice integers into 32 well-mixed bits.
func Hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// Unit maps a lattice point and seed to a value in [0,1).
func Unit(x, y int, seed int64) float64 {
	return float64(Hash3(x, y, int(seed))&0xFFFFFF) / float64(1<<24)
}

// DeriveSeed mixes a salt into a seed so that sibling fields built from one
// world seed do not share a lattice.
func DeriveSeed(seed int64, salt uint64) int64 {
	z := uint64(seed) + 0x9e3779b97f4a7c15*(salt+1)
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// RNG is a small xorshift generator whose sequence depends only on its seed.
type RNG struct {
	state uint64
}

// NewRNG seeds a generator from a lattice point and a seed.
func NewRNG(x, y int, seed int64) *RNG {
	state := uint64(uint32(x))<<32 ^ uint64(uint32(y))<<1 ^ uint64(seed)
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}
	return &RNG{state: state}
}

func (r *RNG) Next() uint64 {
	r.state ^= r.state << 7
	r.state ^= r.state >> 9
	r.state ^= r.state << 8
	return r.state
}

func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}

// Float64 returns a value in [0,1).
func (r *RNG) Float64() float64 {
	return float64(r.Next()>>11) / float64(1<<53)
}
