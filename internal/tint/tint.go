// Package tint picks an accent colour for a cover image: the brightest of the
// image's dominant colours that is still readable against the page
// background.
package tint

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/lepinkainen/librarylookup/internal/cache"
)

// MinContrast is the WCAG AA contrast ratio for normal text.
const MinContrast = 4.5

const (
	defaultMaxColours = 12
	defaultSampleSize = 100
	maxIterations     = 20
)

// RGB is a colour with channels in [0, 1].
type RGB struct {
	R, G, B float64
}

var (
	Black = RGB{0, 0, 0}
	White = RGB{1, 1, 1}
)

// Hex formats the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

// Value is the V component of the colour in HSV.
func (c RGB) Value() float64 {
	return max(c.R, c.G, c.B)
}

func channel(v float64) int {
	return int(math.Round(min(max(v, 0), 1) * 255))
}

// Chooser computes tint colours for image files.
type Chooser struct {
	cache      *cache.CacheDB
	background RGB
	maxColours int
	sampleSize int
}

// Option configures a Chooser.
type Option func(*Chooser)

// WithCache stores computed colours in the tint cache table, keyed by path.
func WithCache(c *cache.CacheDB) Option {
	return func(ch *Chooser) { ch.cache = c }
}

// WithBackground sets the colour tints must contrast with. Defaults to white.
func WithBackground(bg RGB) Option {
	return func(ch *Chooser) { ch.background = bg }
}

// WithMaxColours sets the number of dominant colours considered.
func WithMaxColours(n int) Option {
	return func(ch *Chooser) {
		if n > 0 {
			ch.maxColours = n
		}
	}
}

// New creates a Chooser.
func New(opts ...Option) *Chooser {
	ch := &Chooser{
		background: White,
		maxColours: defaultMaxColours,
		sampleSize: defaultSampleSize,
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// TintFor returns the tint colour for the image at path as #rrggbb.
func (ch *Chooser) TintFor(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hex, _, err := cache.GetOrFetch(ch.cache, cache.TintTable, path, func() (string, error) {
		return ch.compute(path)
	})
	return hex, err
}

func (ch *Chooser) compute(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open cover %s: %w", path, err)
	}
	img = imaging.Fit(img, ch.sampleSize, ch.sampleSize, imaging.Box)

	colours := DominantColours(pixels(img), ch.maxColours)
	if len(colours) == 0 {
		return "", fmt.Errorf("cover %s has no opaque pixels", path)
	}
	return Choose(colours, ch.background).Hex(), nil
}

func pixels(img image.Image) []RGB {
	b := img.Bounds()
	out := make([]RGB, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			// un-premultiply
			out = append(out, RGB{
				R: float64(r) / float64(a),
				G: float64(g) / float64(a),
				B: float64(bl) / float64(a),
			})
		}
	}
	return out
}

// Choose picks the colour with the highest HSV value among those meeting
// MinContrast against background. When none do, black and white join the
// candidates; one of them always qualifies.
func Choose(dominant []RGB, background RGB) RGB {
	var candidates []RGB
	for _, c := range dominant {
		if ContrastRatio(c, background) >= MinContrast {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Choose(append(slices.Clone(dominant), Black, White), background)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Value() > best.Value() {
			best = c
		}
	}
	return best
}

// ContrastRatio is the WCAG 2 contrast ratio between two colours, in [1, 21].
func ContrastRatio(a, b RGB) float64 {
	la, lb := luminance(a), luminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

func luminance(c RGB) float64 {
	return 0.2126*linear(c.R) + 0.7152*linear(c.G) + 0.0722*linear(c.B)
}

func linear(v float64) float64 {
	if v <= 0.03928 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// DominantColours clusters pixels into at most k colours with k-means and
// returns the centroids, largest cluster first. Seeds are the k most common
// exact colours, so the result is deterministic.
func DominantColours(pixels []RGB, k int) []RGB {
	if len(pixels) == 0 || k <= 0 {
		return nil
	}

	counts := make(map[RGB]int)
	for _, p := range pixels {
		counts[p]++
	}
	seeds := make([]RGB, 0, len(counts))
	for c := range counts {
		seeds = append(seeds, c)
	}
	slices.SortFunc(seeds, func(a, b RGB) int {
		if n := cmp.Compare(counts[b], counts[a]); n != 0 {
			return n
		}
		return compareRGB(a, b)
	})
	centroids := seeds[:min(k, len(seeds))]

	assign := make([]int, len(pixels))
	sizes := make([]int, len(centroids))
	for iter := 0; iter < maxIterations; iter++ {
		changed := iter == 0
		for i, p := range pixels {
			nearest := nearestCentroid(p, centroids)
			if nearest != assign[i] {
				assign[i] = nearest
				changed = true
			}
		}

		sums := make([]RGB, len(centroids))
		clear(sizes)
		for i, p := range pixels {
			c := assign[i]
			sums[c].R += p.R
			sums[c].G += p.G
			sums[c].B += p.B
			sizes[c]++
		}
		for c := range centroids {
			if sizes[c] == 0 {
				continue
			}
			n := float64(sizes[c])
			centroids[c] = RGB{sums[c].R / n, sums[c].G / n, sums[c].B / n}
		}
		if !changed {
			break
		}
	}

	type cluster struct {
		colour RGB
		size   int
	}
	clusters := make([]cluster, 0, len(centroids))
	for c, colour := range centroids {
		if sizes[c] > 0 {
			clusters = append(clusters, cluster{colour, sizes[c]})
		}
	}
	slices.SortStableFunc(clusters, func(a, b cluster) int { return cmp.Compare(b.size, a.size) })

	out := make([]RGB, len(clusters))
	for i, c := range clusters {
		out[i] = c.colour
	}
	return out
}

func nearestCentroid(p RGB, centroids []RGB) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		dr, dg, db := p.R-c.R, p.G-c.G, p.B-c.B
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func compareRGB(a, b RGB) int {
	return cmp.Or(cmp.Compare(a.R, b.R), cmp.Compare(a.G, b.G), cmp.Compare(a.B, b.B))
}
