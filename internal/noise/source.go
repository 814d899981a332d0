// Package noise provides seeded coherent-noise sources, a multi-octave noise
// field, and the clock channels that animate it.
package noise

import (
	"fmt"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Source is a stateless 3D coherent-noise function. Implementations are
// deterministic for a seed, continuous, and return values in roughly [-1, 1].
// Eval3 must be safe for concurrent use.
type Source interface {
	Eval3(x, y, z float64) float64
}

// Kind selects a Source implementation.
type Kind string

const (
	KindSimplex     Kind = "simplex"
	KindOpenSimplex Kind = "opensimplex"
	KindPerlin      Kind = "perlin"
)

// Kinds lists the supported source kinds.
func Kinds() []Kind {
	return []Kind{KindSimplex, KindOpenSimplex, KindPerlin}
}

// NewSource creates a seeded noise source of the given kind.
func NewSource(kind Kind, seed int64) (Source, error) {
	switch kind {
	case KindSimplex, "":
		return newSimplex(seed), nil
	case KindOpenSimplex:
		return openSimplexSource{n: opensimplex.New(seed)}, nil
	case KindPerlin:
		// alpha/beta only matter across octaves; a single octave keeps the
		// layering in Field.
		return perlinSource{p: perlin.NewPerlin(2, 2, 1, seed)}, nil
	default:
		return nil, fmt.Errorf("unknown noise kind %q (want one of %v)", kind, Kinds())
	}
}

type openSimplexSource struct {
	n opensimplex.Noise
}

func (s openSimplexSource) Eval3(x, y, z float64) float64 { return s.n.Eval3(x, y, z) }

type perlinSource struct {
	p *perlin.Perlin
}

func (s perlinSource) Eval3(x, y, z float64) float64 { return s.p.Noise3D(x, y, z) }
