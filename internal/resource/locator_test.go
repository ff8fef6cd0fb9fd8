package resource

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/voxworld/pkg/world"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

type countingStats struct{ hits, misses int }

func (c *countingStats) AssetHit()  { c.hits++ }
func (c *countingStats) AssetMiss() { c.misses++ }

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "assets.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestLocator_DirsAndArchives(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("dir"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("only dir"), 0o644))

	l, err := NewLocator([]string{dir}, 0)
	require.NoError(t, err)
	defer l.Close()

	data, err := l.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "dir", string(data))

	require.NoError(t, l.AddArchive(writeZip(t, map[string]string{"a.txt": "zip1", "kv6/Ship.vxm": "ship"})))
	require.NoError(t, l.AddArchive(writeZip(t, map[string]string{"a.txt": "zip2"})))

	data, err = l.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "zip2", string(data), "последний архив ищется первым")

	data, err = l.ReadFile("KV6/ship.vxm")
	require.NoError(t, err)
	assert.Equal(t, "ship", string(data), "имена в архиве без учёта регистра")

	data, err = l.ReadFile("b.txt")
	require.NoError(t, err)
	assert.Equal(t, "only dir", string(data))

	require.NoError(t, l.ResetArchives())
	data, err = l.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "dir", string(data), "после сброса архивов виден каталог")

	_, err = l.ReadFile("missing.txt")
	assert.ErrorIs(t, err, world.ErrNotFound)
	assert.ErrorIs(t, l.AddArchive(filepath.Join(dir, "nope.zip")), world.ErrNotFound)
}

func TestLocator_Cache(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "c.txt")
	require.NoError(t, os.WriteFile(p, []byte("first"), 0o644))

	l, err := NewLocator([]string{dir}, 1<<20)
	require.NoError(t, err)
	defer l.Close()
	stats := &countingStats{}
	l.SetStats(stats)

	_, err = l.ReadFile("c.txt")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, []byte("second"), 0o644))
	data, err := l.ReadFile("c.txt")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.misses)
	if stats.hits == 1 {
		assert.Equal(t, "first", string(data), "попадание возвращает кэшированные байты")
	}
}

func TestLocator_FindFiles(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"one.vxm", "two.vxm", "three.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	l, err := NewLocator([]string{dir}, 0)
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.AddArchive(writeZip(t, map[string]string{"zip.vxm": "", "ONE.vxm": ""})))

	found, err := l.FindFiles("*.vxm")
	require.NoError(t, err)
	assert.Equal(t, []string{"ONE.vxm", "two.vxm", "zip.vxm"}, found)

	_, err = l.FindFiles("[")
	assert.Error(t, err)
}

func TestLoadImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	src.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	require.NoError(t, bmp.Encode(&bmpBuf, src))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sky.png"), pngBuf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sky.bmp"), bmpBuf.Bytes(), 0o644))

	l, err := NewLocator([]string{dir}, 0)
	require.NoError(t, err)
	defer l.Close()

	for _, name := range []string{"sky.png", "sky.bmp"} {
		img, err := l.LoadImage(name)
		require.NoError(t, err, name)
		assert.Equal(t, 3, img.Bounds().Dx())
		assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(1, 1), name)
	}

	_, _, err = DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}
