package importer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupfinder/internal/corpus"
	"dupfinder/internal/logging"
)

func writeTestPhoto(t *testing.T, path string, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			c := color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			}
			draw.Draw(img, image.Rect(bx*16, by*16, (bx+1)*16, (by+1)*16), &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newTestDeps(t *testing.T) (*corpus.Store, *logging.Logger) {
	t.Helper()
	dir := t.TempDir()
	store, err := corpus.Open(filepath.Join(dir, "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, err := logging.New(filepath.Join(dir, "import.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return store, log
}

func TestRunImportsExport(t *testing.T) {
	store, log := newTestDeps(t)

	exportDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(exportDir, "photos"), 0o755))
	writeTestPhoto(t, filepath.Join(exportDir, "photos", "photo_1.png"), 1)
	writeTestPhoto(t, filepath.Join(exportDir, "photos", "photo_2.png"), 2)
	// A "photo" that is not an image at all.
	require.NoError(t, os.WriteFile(filepath.Join(exportDir, "photos", "broken.png"), []byte("not a png"), 0o644))

	result := `{
		"name": "exported chat",
		"messages": [
			{"id": 1, "type": "message", "photo": "photos/photo_1.png"},
			{"id": 2, "type": "service"},
			{"id": 3, "type": "message", "text": "no photo here"},
			{"id": 4, "type": "message", "photo": "photos/photo_2.png"},
			{"id": 5, "type": "message", "photo": "photos/missing.png"},
			{"id": 6, "type": "message", "photo": "photos/broken.png"}
		]
	}`
	exportPath := filepath.Join(exportDir, "result.json")
	require.NoError(t, os.WriteFile(exportPath, []byte(result), 0o644))

	stats, err := Run(context.Background(), store, log, exportPath, -1001234)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Messages)
	assert.Equal(t, 2, stats.Imported)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 2, stats.Failed)

	entries, err := store.Scan(context.Background(), -1001234)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].MessageID)
	assert.Equal(t, 4, entries[1].MessageID)
	assert.Equal(t, "exported chat", entries[0].ChatTitle)
	assert.NotEqual(t, entries[0].Hash, entries[1].Hash)
}

func TestRunMissingExport(t *testing.T) {
	store, log := newTestDeps(t)

	_, err := Run(context.Background(), store, log, filepath.Join(t.TempDir(), "nope.json"), 1)
	require.Error(t, err)
}

func TestRunInvalidJSON(t *testing.T) {
	store, log := newTestDeps(t)

	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := Run(context.Background(), store, log, path, 1)
	require.Error(t, err)
}
