package transition

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Picker draws effects uniformly from a fixed pool. The same seed and pool
// always produce the same sequence.
type Picker struct {
	mu      sync.Mutex
	effects []string
	rng     *rand.Rand
	seed    int64
}

// NewPicker builds a picker over effects. Blank and duplicate names are
// dropped. A zero seed seeds from the clock.
func NewPicker(effects []string, seed int64) (*Picker, error) {
	pool := lo.Uniq(lo.FilterMap(effects, func(e string, _ int) (string, bool) {
		e = strings.TrimSpace(e)
		return e, e != ""
	}))
	if len(pool) == 0 {
		return nil, errors.New("transition effect list is empty")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Picker{
		effects: pool,
		rng:     rand.New(rand.NewSource(seed)),
		seed:    seed,
	}, nil
}

// Seed returns the seed actually in use.
func (p *Picker) Seed() int64 {
	return p.seed
}

// Effects returns the deduplicated pool.
func (p *Picker) Effects() []string {
	return append([]string(nil), p.effects...)
}

// Next draws one effect.
func (p *Picker) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effects[p.rng.Intn(len(p.effects))]
}

// Draw returns n effects in draw order.
func (p *Picker) Draw(n int) []string {
	return lo.Times(n, func(int) string { return p.Next() })
}
