package flat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	indexFile    = "index.bin"
	metadataFile = "metadata.json"

	blobMagic   = "FOLIOIDX"
	blobVersion = 1
)

// metadata is the structured artifact persisted alongside the vector blob.
type metadata struct {
	Chunks         []vector.ChunkRecord `json:"chunks"`
	DocumentChunks map[string][]int     `json:"document_chunks"`
}

// Save writes the vector blob and the metadata document together, blob
// first: a metadata document without a readable blob is treated as invalid
// by Load. Both writes replace whole files atomically.
func (d *Driver) Save(_ context.Context) error {
	if d.path == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	if err := d.writeBlob(); err != nil {
		return fmt.Errorf("writing index blob: %w", err)
	}
	if err := d.writeMetadata(); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}

	d.logger.Debug("saved vector index",
		"chunks", len(d.records),
		"documents", len(d.docChunks),
	)

	return nil
}

// Load restores the persisted pair. Missing or corrupt state degrades to an
// empty index rather than failing startup: ingestion is idempotent-retriable,
// so the reset is logged as a recovery event, never swallowed silently.
func (d *Driver) Load(_ context.Context) error {
	if d.path == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	vectors, err := d.readBlob()
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Debug("no persisted index found, starting empty", "path", d.path)
		} else {
			d.logger.Warn("discarding unreadable vector index, starting empty",
				"path", d.path,
				"error", err,
			)
		}
		d.reset()
		return nil
	}

	meta, err := d.readMetadata(len(vectors))
	if err != nil {
		d.logger.Warn("discarding vector index with invalid metadata, starting empty",
			"path", d.path,
			"error", err,
		)
		d.reset()
		return nil
	}

	d.vectors = vectors
	d.records = meta.Chunks
	d.docChunks = meta.DocumentChunks
	if d.records == nil {
		d.records = make([]vector.ChunkRecord, 0)
	}
	if d.docChunks == nil {
		d.docChunks = make(map[string][]int)
	}

	d.logger.Info("loaded vector index",
		"chunks", len(d.records),
		"documents", len(d.docChunks),
	)

	return nil
}

func (d *Driver) writeBlob() error {
	buf := make([]byte, 0, len(blobMagic)+12+len(d.vectors)*d.dimension*4)
	buf = append(buf, blobMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, blobVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(d.dimension))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(d.vectors)))

	for _, vec := range d.vectors {
		for _, x := range vec {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
		}
	}

	return atomicWrite(filepath.Join(d.path, indexFile), buf)
}

func (d *Driver) writeMetadata() error {
	payload, err := json.Marshal(metadata{
		Chunks:         d.records,
		DocumentChunks: d.docChunks,
	})
	if err != nil {
		return err
	}

	return atomicWrite(filepath.Join(d.path, metadataFile), payload)
}

func (d *Driver) readBlob() ([][]float32, error) {
	payload, err := os.ReadFile(filepath.Join(d.path, indexFile))
	if err != nil {
		return nil, err
	}

	header := len(blobMagic) + 12
	if len(payload) < header || string(payload[:len(blobMagic)]) != blobMagic {
		return nil, fmt.Errorf("malformed index blob header")
	}

	off := len(blobMagic)
	version := binary.LittleEndian.Uint32(payload[off:])
	dim := int(binary.LittleEndian.Uint32(payload[off+4:]))
	count := int(binary.LittleEndian.Uint32(payload[off+8:]))

	if version != blobVersion {
		return nil, fmt.Errorf("unsupported index blob version %d", version)
	}
	if dim != d.dimension {
		return nil, fmt.Errorf("index blob dimension %d does not match configured %d", dim, d.dimension)
	}
	if len(payload) != header+count*dim*4 {
		return nil, fmt.Errorf("index blob truncated")
	}

	vectors := make([][]float32, count)
	off = header
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
			off += 4
		}
		vectors[i] = vec
	}

	return vectors, nil
}

func (d *Driver) readMetadata(count int) (*metadata, error) {
	payload, err := os.ReadFile(filepath.Join(d.path, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}

	if len(meta.Chunks) != count {
		return nil, fmt.Errorf("metadata lists %d chunks, blob holds %d vectors", len(meta.Chunks), count)
	}
	for docID, positions := range meta.DocumentChunks {
		for _, pos := range positions {
			if pos < 0 || pos >= count {
				return nil, fmt.Errorf("metadata position %d for document %q out of range", pos, docID)
			}
		}
	}

	return &meta, nil
}

func (d *Driver) reset() {
	d.vectors = make([][]float32, 0)
	d.records = make([]vector.ChunkRecord, 0)
	d.docChunks = make(map[string][]int)
}

// atomicWrite writes payload to a temp file and renames it into place.
func atomicWrite(path string, payload []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
