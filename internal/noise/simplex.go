package noise

import "math/rand"

var grad3 = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// simplex is 3D simplex noise over a seed-shuffled permutation table.
type simplex struct {
	perm [512]uint8
}

func newSimplex(seed int64) *simplex {
	s := &simplex{}
	r := rand.New(rand.NewSource(seed))
	p := make([]uint8, 256)
	for i := 0; i < 256; i++ {
		p[i] = uint8(i)
	}
	for i := 255; i > 0; i-- {
		j := r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	for i := 0; i < 512; i++ {
		s.perm[i] = p[i&255]
	}
	return s
}

func fastFloor(x float64) int {
	i := int(x)
	if x < float64(i) {
		return i - 1
	}
	return i
}

func dot3(g [3]float64, x, y, z float64) float64 {
	return g[0]*x + g[1]*y + g[2]*z
}

func (s *simplex) Eval3(x, y, z float64) float64 {
	const F3 = 1.0 / 3.0
	const G3 = 1.0 / 6.0

	t := (x + y + z) * F3
	i := fastFloor(x + t)
	j := fastFloor(y + t)
	k := fastFloor(z + t)

	t0 := float64(i+j+k) * G3
	x0 := x - (float64(i) - t0)
	y0 := y - (float64(j) - t0)
	z0 := z - (float64(k) - t0)

	// Pick the simplex the point lies in by ranking the offsets.
	var i1, j1, k1, i2, j2, k2 int
	if x0 >= y0 {
		switch {
		case y0 >= z0:
			i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 1, 0
		case x0 >= z0:
			i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 0, 1
		default:
			i1, j1, k1, i2, j2, k2 = 0, 0, 1, 1, 0, 1
		}
	} else {
		switch {
		case y0 < z0:
			i1, j1, k1, i2, j2, k2 = 0, 0, 1, 0, 1, 1
		case x0 < z0:
			i1, j1, k1, i2, j2, k2 = 0, 1, 0, 0, 1, 1
		default:
			i1, j1, k1, i2, j2, k2 = 0, 1, 0, 1, 1, 0
		}
	}

	x1 := x0 - float64(i1) + G3
	y1 := y0 - float64(j1) + G3
	z1 := z0 - float64(k1) + G3

	x2 := x0 - float64(i2) + 2.0*G3
	y2 := y0 - float64(j2) + 2.0*G3
	z2 := z0 - float64(k2) + 2.0*G3

	x3 := x0 - 1.0 + 3.0*G3
	y3 := y0 - 1.0 + 3.0*G3
	z3 := z0 - 1.0 + 3.0*G3

	ii := i & 255
	jj := j & 255
	kk := k & 255

	gi0 := s.perm[ii+int(s.perm[jj+int(s.perm[kk])])] % 12
	gi1 := s.perm[ii+i1+int(s.perm[jj+j1+int(s.perm[kk+k1])])] % 12
	gi2 := s.perm[ii+i2+int(s.perm[jj+j2+int(s.perm[kk+k2])])] % 12
	gi3 := s.perm[ii+1+int(s.perm[jj+1+int(s.perm[kk+1])])] % 12

	n0, n1, n2, n3 := 0.0, 0.0, 0.0, 0.0

	t0c := 0.6 - x0*x0 - y0*y0 - z0*z0
	if t0c > 0 {
		t0c *= t0c
		n0 = t0c * t0c * dot3(grad3[gi0], x0, y0, z0)
	}
	t1c := 0.6 - x1*x1 - y1*y1 - z1*z1
	if t1c > 0 {
		t1c *= t1c
		n1 = t1c * t1c * dot3(grad3[gi1], x1, y1, z1)
	}
	t2c := 0.6 - x2*x2 - y2*y2 - z2*z2
	if t2c > 0 {
		t2c *= t2c
		n2 = t2c * t2c * dot3(grad3[gi2], x2, y2, z2)
	}
	t3c := 0.6 - x3*x3 - y3*y3 - z3*z3
	if t3c > 0 {
		t3c *= t3c
		n3 = t3c * t3c * dot3(grad3[gi3], x3, y3, z3)
	}

	return 32.0 * (n0 + n1 + n2 + n3)
}
