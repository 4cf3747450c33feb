package vectorstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/embedding"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index")

	chunks := []domain.Chunk{
		{
			ID:         domain.ChunkID("annual revenue rose sharply", map[string]string{"source": "report.txt"}),
			Content:    "annual revenue rose sharply",
			Metadata:   map[string]string{"source": "report.txt"},
			TokenCount: 4,
		},
		{
			ID:         domain.ChunkID("the board approved a new budget", map[string]string{"source": "report.txt"}),
			Content:    "the board approved a new budget",
			Metadata:   map[string]string{"source": "report.txt"},
			TokenCount: 6,
		},
	}

	orig := newTestStore(t)
	require.NoError(t, orig.Add(ctx, chunks))
	require.NoError(t, orig.Save(path))

	t.Run("both artifacts exist", func(t *testing.T) {
		_, err := os.Stat(path + VecExt)
		require.NoError(t, err)
		_, err = os.Stat(path + SidecarExt)
		require.NoError(t, err)
	})

	restored := newTestStore(t)
	require.NoError(t, restored.Load(path))

	t.Run("chunk list survives with ids, order and metadata", func(t *testing.T) {
		assert.Equal(t, 2, restored.Stats().Chunks)
		results, err := restored.Search(ctx, chunks[0].Content, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, chunks[0].ID, results[0].Chunk.ID)
		assert.Equal(t, chunks[0].Metadata, results[0].Chunk.Metadata)
	})

	t.Run("search results match the original index", func(t *testing.T) {
		query := "what did the board approve"
		want, err := orig.Search(ctx, query, 2)
		require.NoError(t, err)
		got, err := restored.Search(ctx, query, 2)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Chunk.ID, got[i].Chunk.ID)
			assert.InDelta(t, float64(want[i].Score), float64(got[i].Score), 1e-6)
		}
	})
}

func TestStore_LoadCorruptIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("missing vector file", func(t *testing.T) {
		s := newTestStore(t)
		err := s.Load(filepath.Join(t.TempDir(), "nowhere"))
		assert.ErrorIs(t, err, domain.ErrCorruptIndex)
	})

	t.Run("missing sidecar", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index")
		s := newTestStore(t)
		require.NoError(t, s.Add(ctx, []domain.Chunk{testChunk("lonely chunk content")}))
		require.NoError(t, s.Save(path))
		require.NoError(t, os.Remove(path+SidecarExt))

		err := newTestStore(t).Load(path)
		assert.ErrorIs(t, err, domain.ErrCorruptIndex)
	})

	t.Run("garbled vector file header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index")
		s := newTestStore(t)
		require.NoError(t, s.Add(ctx, []domain.Chunk{testChunk("some chunk content")}))
		require.NoError(t, s.Save(path))
		require.NoError(t, os.WriteFile(path+VecExt, []byte("not a vector file"), 0o644))

		err := newTestStore(t).Load(path)
		assert.ErrorIs(t, err, domain.ErrCorruptIndex)
	})

	t.Run("chunk count disagrees with vector count", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index")
		s := newTestStore(t)
		require.NoError(t, s.Add(ctx, []domain.Chunk{
			testChunk("first stored chunk"),
			testChunk("second stored chunk"),
		}))
		require.NoError(t, s.Save(path))

		// Rewrite the sidecar with a third chunk the vector file knows
		// nothing about.
		sc, err := readSidecar(path + SidecarExt)
		require.NoError(t, err)
		sc.Chunks = append(sc.Chunks, testChunk("phantom third chunk"))
		f, err := os.Create(path + SidecarExt)
		require.NoError(t, err)
		require.NoError(t, gob.NewEncoder(f).Encode(sc))
		require.NoError(t, f.Close())

		err = newTestStore(t).Load(path)
		require.ErrorIs(t, err, domain.ErrCorruptIndex)
		assert.Contains(t, err.Error(), "3 chunks")
	})

	t.Run("huge count header fails fast without a huge allocation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index")
		s := newTestStore(t)
		require.NoError(t, s.Add(ctx, []domain.Chunk{testChunk("lone indexed chunk")}))
		require.NoError(t, s.Save(path))

		// Rewrite the header claiming four billion rows with no data behind it.
		var buf bytes.Buffer
		buf.WriteString("DRVI")
		for _, v := range []uint32{1, 64, math.MaxUint32} {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
		}
		require.NoError(t, os.WriteFile(path+VecExt, buf.Bytes(), 0o644))

		err := newTestStore(t).Load(path)
		require.ErrorIs(t, err, domain.ErrCorruptIndex)
		assert.Contains(t, err.Error(), "truncated vector data")
	})

	t.Run("implausible dimension header is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index")
		var buf bytes.Buffer
		buf.WriteString("DRVI")
		for _, v := range []uint32{1, math.MaxUint32, 1} {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
		}
		require.NoError(t, os.WriteFile(path+VecExt, buf.Bytes(), 0o644))

		err := newTestStore(t).Load(path)
		assert.ErrorIs(t, err, domain.ErrCorruptIndex)
	})

	t.Run("dimension disagrees with the configured embedder", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index")
		s := newTestStore(t)
		require.NoError(t, s.Add(ctx, []domain.Chunk{testChunk("dimension probe content")}))
		require.NoError(t, s.Save(path))

		otherEmb, err := embedding.NewHash(128)
		require.NoError(t, err)
		other := New(otherEmb, zap.NewNop())
		err = other.Load(path)
		require.ErrorIs(t, err, domain.ErrCorruptIndex)
		assert.Zero(t, other.Stats().Chunks, "failed load must leave the store empty")
	})

	t.Run("failed load leaves existing contents intact", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Add(ctx, []domain.Chunk{testChunk("already indexed content")}))

		err := s.Load(filepath.Join(t.TempDir(), "nowhere"))
		require.ErrorIs(t, err, domain.ErrCorruptIndex)
		assert.Equal(t, 1, s.Stats().Chunks)
	})
}

func TestStore_SaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index")

	s := newTestStore(t)
	require.NoError(t, s.Add(ctx, []domain.Chunk{testChunk("durable chunk content")}))
	require.NoError(t, s.Save(path))

	// A second save over the same path must not leave temp files behind.
	require.NoError(t, s.Save(path))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
