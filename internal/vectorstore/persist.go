package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"docrag/internal/domain"
)

// On-disk layout: <path>.vec holds the raw vectors (magic, version, dimension,
// count, then count*dimension little-endian float32), <path>.gob is a gob
// sidecar with the ordered chunk list and index configuration. The two files
// are one logical unit; Load refuses anything inconsistent between them.

const (
	VecExt     = ".vec"
	SidecarExt = ".gob"

	vecMagic   = "DRVI"
	vecVersion = uint32(1)

	// Sanity bounds applied to untrusted header fields on load.
	maxDimension = 1 << 20
	preallocRows = 4096
)

type sidecar struct {
	Chunks    []domain.Chunk
	Model     string
	Dimension int
}

// Save writes both index artifacts. Each file is written to a temporary path
// and renamed into place so a crash never leaves a partially written artifact.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	chunks := append([]domain.Chunk(nil), s.chunks...)
	vectors := append([][]float32(nil), s.vectors...)
	s.mu.RUnlock()

	dim := s.embedder.Dimension()
	if err := writeAtomic(path+VecExt, func(w io.Writer) error {
		return writeVectors(w, dim, vectors)
	}); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	sc := sidecar{Chunks: chunks, Model: s.embedder.Name(), Dimension: dim}
	if err := writeAtomic(path+SidecarExt, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(sc)
	}); err != nil {
		return fmt.Errorf("save sidecar: %w", err)
	}
	s.logger.Info("saved index", zap.String("path", path), zap.Int("chunks", len(chunks)))
	return nil
}

// Load replaces the store contents with the persisted index at path. A missing
// or garbled artifact, a chunk/vector count mismatch, or a dimension that
// disagrees with the configured embedder all fail with ErrCorruptIndex and
// leave the store unchanged.
func (s *Store) Load(path string) error {
	vectors, vecDim, err := readVectors(path + VecExt)
	if err != nil {
		return err
	}
	sc, err := readSidecar(path + SidecarExt)
	if err != nil {
		return err
	}
	if len(sc.Chunks) != len(vectors) {
		return fmt.Errorf("%w: sidecar has %d chunks but vector file has %d vectors", domain.ErrCorruptIndex, len(sc.Chunks), len(vectors))
	}
	if sc.Dimension != vecDim {
		return fmt.Errorf("%w: sidecar dimension %d disagrees with vector file dimension %d", domain.ErrCorruptIndex, sc.Dimension, vecDim)
	}
	if vecDim != s.embedder.Dimension() {
		return fmt.Errorf("%w: stored dimension %d does not match embedder dimension %d", domain.ErrCorruptIndex, vecDim, s.embedder.Dimension())
	}
	if sc.Model != s.embedder.Name() {
		s.logger.Warn("stored index was built with a different model",
			zap.String("stored", sc.Model), zap.String("configured", s.embedder.Name()))
	}

	s.mu.Lock()
	s.chunks = sc.Chunks
	s.vectors = vectors
	s.mu.Unlock()

	s.logger.Info("loaded index", zap.String("path", path), zap.Int("chunks", len(sc.Chunks)))
	return nil
}

func writeVectors(w io.Writer, dim int, vectors [][]float32) error {
	if _, err := w.Write([]byte(vecMagic)); err != nil {
		return err
	}
	for _, v := range []uint32{vecVersion, uint32(dim), uint32(len(vectors))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, vec := range vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return nil
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrCorruptIndex, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(vecMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != vecMagic {
		return nil, 0, fmt.Errorf("%w: bad vector file header", domain.ErrCorruptIndex)
	}
	var version, dim, count uint32
	for _, p := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, 0, fmt.Errorf("%w: truncated vector file header", domain.ErrCorruptIndex)
		}
	}
	if version != vecVersion {
		return nil, 0, fmt.Errorf("%w: unsupported vector file version %d", domain.ErrCorruptIndex, version)
	}
	if dim == 0 || dim > maxDimension {
		return nil, 0, fmt.Errorf("%w: implausible vector dimension %d", domain.ErrCorruptIndex, dim)
	}
	// The header is untrusted input; cap the preallocation so a corrupt count
	// fails on the first truncated row instead of allocating gigabytes.
	prealloc := count
	if prealloc > preallocRows {
		prealloc = preallocRows
	}
	vectors := make([][]float32, 0, prealloc)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, 0, fmt.Errorf("%w: truncated vector data at row %d", domain.ErrCorruptIndex, i)
		}
		vectors = append(vectors, vec)
	}
	return vectors, int(dim), nil
}

func readSidecar(path string) (sidecar, error) {
	f, err := os.Open(path)
	if err != nil {
		return sidecar{}, fmt.Errorf("%w: %v", domain.ErrCorruptIndex, err)
	}
	defer f.Close()
	var sc sidecar
	if err := gob.NewDecoder(f).Decode(&sc); err != nil {
		return sidecar{}, fmt.Errorf("%w: decode sidecar: %v", domain.ErrCorruptIndex, err)
	}
	return sc, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
