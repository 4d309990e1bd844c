package dedup

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupfinder/internal/corpus"
	"dupfinder/internal/fingerprint"
	"dupfinder/internal/logging"
)

func newTestService(t *testing.T, threshold int) (*Service, *corpus.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := corpus.Open(filepath.Join(dir, "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, err := logging.New(filepath.Join(dir, "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return New(store, threshold, log), store
}

// testImage renders a deterministic blocky image; different seeds give
// visually unrelated images.
func testImage(t *testing.T, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for by := 0; by < 16; by++ {
		for bx := 0; bx < 16; bx++ {
			c := color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			}
			block := image.Rect(bx*16, by*16, (bx+1)*16, (by+1)*16)
			draw.Draw(img, block, &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAutomaticModeEndToEnd(t *testing.T) {
	svc, store := newTestService(t, 5)
	ctx := context.Background()
	img := testImage(t, 1)

	// First sighting: stored as new.
	res, err := svc.ClassifyNewImage(ctx, 1, 10, "chat", img)
	require.NoError(t, err)
	assert.Equal(t, KindNew, res.Kind)

	// Byte-identical repost: duplicate of message 10 at distance 0, and
	// the corpus keeps only the original.
	res, err = svc.ClassifyNewImage(ctx, 1, 11, "chat", img)
	require.NoError(t, err)
	assert.Equal(t, KindDuplicate, res.Kind)
	assert.Equal(t, 0, res.Distance)
	assert.Equal(t, 10, res.MessageID)

	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAutomaticModeDistinctImagesBothStored(t *testing.T) {
	svc, store := newTestService(t, 5)
	ctx := context.Background()

	res, err := svc.ClassifyNewImage(ctx, 1, 10, "chat", testImage(t, 1))
	require.NoError(t, err)
	assert.Equal(t, KindNew, res.Kind)

	res, err = svc.ClassifyNewImage(ctx, 1, 20, "chat", testImage(t, 2))
	require.NoError(t, err)
	assert.Equal(t, KindNew, res.Kind)

	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAutomaticModeSameImageOtherChatIsNew(t *testing.T) {
	svc, _ := newTestService(t, 5)
	ctx := context.Background()
	img := testImage(t, 1)

	res, err := svc.ClassifyNewImage(ctx, 1, 10, "chat a", img)
	require.NoError(t, err)
	assert.Equal(t, KindNew, res.Kind)

	// Matching never crosses chats.
	res, err = svc.ClassifyNewImage(ctx, 2, 10, "chat b", img)
	require.NoError(t, err)
	assert.Equal(t, KindNew, res.Kind)
}

func TestAutomaticModeNotAnImage(t *testing.T) {
	svc, store := newTestService(t, 5)
	ctx := context.Background()

	res, err := svc.ClassifyNewImage(ctx, 1, 10, "chat", []byte("just some text"))
	require.NoError(t, err)
	assert.Equal(t, KindNotAnImage, res.Kind)

	// Nothing was stored.
	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestManualModeReturnsClosestRegardlessOfDistance(t *testing.T) {
	svc, store := newTestService(t, 5)
	ctx := context.Background()

	imgA := testImage(t, 1)
	imgB := testImage(t, 2)
	fpA, err := fingerprint.Extract(imgA)
	require.NoError(t, err)
	fpB, err := fingerprint.Extract(imgB)
	require.NoError(t, err)
	wantDist := fingerprint.Distance(fpA, fpB)

	require.NoError(t, store.Insert(ctx, corpus.Entry{ChatID: 1, MessageID: 10, Hash: fpA}))
	require.NoError(t, store.Insert(ctx, corpus.Entry{ChatID: 1, MessageID: 20, Hash: fpB}))

	// Anchored at message 10, which is excluded from its own search. The
	// unrelated image at message 20 comes back however far away it is.
	m, err := svc.ClassifyManual(ctx, 1, 10, imgA)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 20, m.MessageID)
	assert.Equal(t, wantDist, m.Distance)

	// Manual mode never mutates the corpus.
	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestManualModeNoOtherEntries(t *testing.T) {
	svc, store := newTestService(t, 5)
	ctx := context.Background()

	img := testImage(t, 1)
	fp, err := fingerprint.Extract(img)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, corpus.Entry{ChatID: 1, MessageID: 10, Hash: fp}))

	m, err := svc.ClassifyManual(ctx, 1, 10, img)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestManualModeNotAnImage(t *testing.T) {
	svc, _ := newTestService(t, 5)

	_, err := svc.ClassifyManual(context.Background(), 1, 10, []byte("nope"))
	require.ErrorIs(t, err, fingerprint.ErrUndecodable)
}
