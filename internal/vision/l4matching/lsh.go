package l4matching

import (
	"math/rand/v2"
	"slices"

	"github.com/banshee-data/featurebench/internal/vision"
)

// Default LSH parameters for the approximate searcher.
const (
	DefaultLSHTables = 8
	DefaultLSHBits   = 12
	DefaultLSHSeed   = 0x5eed
)

// LSH is an approximate searcher built on locality-sensitive hashing.
// Bit strings are hashed by sampling bit positions; float vectors by the
// signs of projections onto random hyperplanes. Candidates sharing a bucket
// with the query in any table are re-ranked by exact distance. When fewer
// than k candidates are found the query falls back to an exhaustive scan,
// so the result length always matches BruteForce.
//
// The hash family is drawn from a fixed seed so repeated searches over the
// same blocks return the same neighbours.
type LSH struct {
	Tables int
	Bits   int
	Seed   uint64
}

// NewLSH returns an LSH searcher with the default parameters.
func NewLSH() *LSH {
	return &LSH{Tables: DefaultLSHTables, Bits: DefaultLSHBits, Seed: DefaultLSHSeed}
}

// Search implements vision.Searcher.
func (l *LSH) Search(query, reference vision.Descriptors, metric vision.Metric, k int) ([][]vision.Neighbor, error) {
	if err := checkBlocks(query, reference, metric); err != nil {
		return nil, err
	}
	out := make([][]vision.Neighbor, query.Rows())
	if k <= 0 || reference.Empty() || query.Empty() {
		return out, nil
	}

	hashers := l.hashers(query, reference)
	tables := make([]map[uint64][]int, len(hashers))
	for t, h := range hashers {
		tables[t] = make(map[uint64][]int)
		for ri := 0; ri < reference.Rows(); ri++ {
			key := h.hash(reference, ri)
			tables[t][key] = append(tables[t][key], ri)
		}
	}

	all := make([]int, reference.Rows())
	for i := range all {
		all[i] = i
	}

	for qi := range out {
		seen := make(map[int]struct{})
		var candidates []int
		for t, h := range hashers {
			for _, ri := range tables[t][h.hash(query, qi)] {
				if _, ok := seen[ri]; ok {
					continue
				}
				seen[ri] = struct{}{}
				candidates = append(candidates, ri)
			}
		}
		if len(candidates) < k {
			candidates = all
		} else {
			slices.Sort(candidates)
		}
		nb, err := nearest(query, reference, metric, qi, candidates, k)
		if err != nil {
			return nil, err
		}
		out[qi] = nb
	}
	return out, nil
}

type hasher interface {
	hash(d vision.Descriptors, row int) uint64
}

func (l *LSH) hashers(query, reference vision.Descriptors) []hasher {
	tables := l.Tables
	if tables <= 0 {
		tables = DefaultLSHTables
	}
	nbits := l.Bits
	if nbits <= 0 || nbits > 64 {
		nbits = DefaultLSHBits
	}
	rng := rand.New(rand.NewPCG(l.Seed, l.Seed^0x9e3779b97f4a7c15))

	sample := reference
	if sample.Empty() {
		sample = query
	}

	out := make([]hasher, tables)
	if sample.IsBinary() {
		width := max(len(sample.Binary[0])*8, 1)
		for t := range out {
			h := bitSampler{positions: make([]int, nbits)}
			for i := range h.positions {
				h.positions[i] = rng.IntN(width)
			}
			out[t] = h
		}
		return out
	}

	dims := len(sample.Float[0])
	for t := range out {
		h := hyperplanes{normals: make([][]float64, nbits)}
		for i := range h.normals {
			n := make([]float64, dims)
			for j := range n {
				n[j] = rng.NormFloat64()
			}
			h.normals[i] = n
		}
		out[t] = h
	}
	return out
}

type bitSampler struct {
	positions []int
}

func (b bitSampler) hash(d vision.Descriptors, row int) uint64 {
	bitsRow := d.Binary[row]
	var key uint64
	for i, p := range b.positions {
		if p/8 < len(bitsRow) && bitsRow[p/8]&(1<<(p%8)) != 0 {
			key |= 1 << i
		}
	}
	return key
}

type hyperplanes struct {
	normals [][]float64
}

func (h hyperplanes) hash(d vision.Descriptors, row int) uint64 {
	v := d.Float[row]
	var key uint64
	for i, n := range h.normals {
		var dot float64
		for j := 0; j < len(n) && j < len(v); j++ {
			dot += n[j] * v[j]
		}
		if dot >= 0 {
			key |= 1 << i
		}
	}
	return key
}
