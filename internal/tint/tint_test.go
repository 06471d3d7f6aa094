package tint

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/lepinkainen/librarylookup/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func solid(c color.Color) image.Image {
	return imaging.New(40, 40, c)
}

func split(left, right color.Color) image.Image {
	img := imaging.New(40, 40, left)
	return imaging.Paste(img, imaging.New(20, 40, right), image.Pt(20, 0))
}

func TestContrastRatio(t *testing.T) {
	assert.InDelta(t, 21.0, ContrastRatio(Black, White), 0.001)
	assert.InDelta(t, 21.0, ContrastRatio(White, Black), 0.001)
	assert.InDelta(t, 1.0, ContrastRatio(White, White), 0.001)
	assert.InDelta(t, 4.0, ContrastRatio(RGB{1, 0, 0}, White), 0.01)
}

func TestChoose(t *testing.T) {
	darkGreen := RGB{0, 100.0 / 255, 0}
	navy := RGB{0, 0, 128.0 / 255}

	testCases := []struct {
		name     string
		dominant []RGB
		bg       RGB
		expected string
	}{
		{name: "brightest readable colour wins", dominant: []RGB{navy, darkGreen, White}, bg: White, expected: "#000080"},
		{name: "too light falls back to black", dominant: []RGB{{1, 0, 0}, {1, 1, 0}}, bg: White, expected: "#000000"},
		{name: "dark background falls back to white", dominant: []RGB{navy}, bg: Black, expected: "#ffffff"},
		{name: "empty input falls back", dominant: nil, bg: White, expected: "#000000"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Choose(tc.dominant, tc.bg).Hex())
		})
	}
}

func TestDominantColours(t *testing.T) {
	t.Run("two flat regions", func(t *testing.T) {
		var px []RGB
		for range 30 {
			px = append(px, White)
		}
		for range 10 {
			px = append(px, Black)
		}
		got := DominantColours(px, 12)
		require.Len(t, got, 2)
		assert.Equal(t, "#ffffff", got[0].Hex())
		assert.Equal(t, "#000000", got[1].Hex())
	})

	t.Run("clusters to k centroids", func(t *testing.T) {
		px := []RGB{{0, 0, 0}, {0.02, 0, 0}, {1, 1, 1}, {0.98, 1, 1}}
		got := DominantColours(px, 2)
		require.Len(t, got, 2)
		for _, c := range got {
			assert.True(t, c.Value() < 0.05 || c.Value() > 0.95, "unexpected centroid %v", c)
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, DominantColours(nil, 12))
	})
}

func TestTintFor(t *testing.T) {
	t.Run("picks readable cover colour", func(t *testing.T) {
		path := writePNG(t, split(color.White, color.NRGBA{R: 0, G: 100, B: 0, A: 255}))

		hex, err := New().TintFor(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "#006400", hex)
	})

	t.Run("light cover falls back to black", func(t *testing.T) {
		path := writePNG(t, solid(color.NRGBA{R: 255, G: 220, B: 0, A: 255}))

		hex, err := New().TintFor(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "#000000", hex)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := New().TintFor(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New().TintFor(ctx, "whatever.jpg")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestTintFor_Cached(t *testing.T) {
	db, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	path := writePNG(t, solid(color.NRGBA{R: 0, G: 0, B: 128, A: 255}))
	ch := New(WithCache(db))

	first, err := ch.TintFor(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "#000080", first)
	assert.True(t, db.CacheExists(cache.TintTable, path))

	require.NoError(t, os.Remove(path))
	second, err := ch.TintFor(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
