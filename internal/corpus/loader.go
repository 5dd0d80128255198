package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/meridian-oss/trialmatch/internal/domain"
)

// embedBatchSize bounds one backfill call to the embedding provider.
const embedBatchSize = 32

// trialDTO is the on-disk trial shape written by the offline ingestion
// collaborator. Embedding is optional: the loader backfills missing vectors
// through the configured embedder.
type trialDTO struct {
	NCTID       string    `json:"nct_id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Conditions  string    `json:"conditions"`
	Phase       string    `json:"phase"`
	Eligibility string    `json:"eligibility_criteria"`
	Gender      string    `json:"gender"`
	MinAge      string    `json:"min_age"`
	MaxAge      string    `json:"max_age"`
	StudyType   string    `json:"study_type"`
	Locations   string    `json:"locations"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

func (d trialDTO) toDomain() domain.TrialRecord {
	return domain.TrialRecord{
		NCTID:       d.NCTID,
		Title:       d.Title,
		Summary:     d.Summary,
		Conditions:  d.Conditions,
		Phase:       d.Phase,
		Eligibility: d.Eligibility,
		Gender:      d.Gender,
		MinAge:      d.MinAge,
		MaxAge:      d.MaxAge,
		StudyType:   d.StudyType,
		Locations:   d.Locations,
	}
}

// Loader materializes corpus snapshots from a JSON file.
type Loader struct {
	path     string
	embedder domain.BatchEmbedder
	logger   *zap.Logger
}

// NewLoader creates a loader. embedder may be nil when every record in the
// file carries a precomputed embedding.
func NewLoader(path string, embedder domain.BatchEmbedder, logger *zap.Logger) *Loader {
	return &Loader{path: path, embedder: embedder, logger: logger}
}

// Load reads the corpus file and builds a snapshot. The snapshot version is
// derived from the file content, so a reload of identical data produces the
// same version.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(l.path))
	if err != nil {
		return nil, fmt.Errorf("read corpus file %s: %w", l.path, err)
	}

	var dtos []trialDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("parse corpus file %s: %w", l.path, err)
	}

	records := make([]domain.TrialRecord, len(dtos))
	vectors := make([][]float32, len(dtos))

	var missing []int
	for i, dto := range dtos {
		if dto.NCTID == "" {
			return nil, fmt.Errorf("corpus record %d has no nct_id", i)
		}
		records[i] = dto.toDomain()
		if len(dto.Embedding) > 0 {
			vectors[i] = dto.Embedding
		} else {
			missing = append(missing, i)
		}
	}

	if len(missing) > 0 {
		if l.embedder == nil {
			return nil, fmt.Errorf("%d corpus records lack embeddings and no embedder is configured", len(missing))
		}
		if err := l.backfill(ctx, records, vectors, missing); err != nil {
			return nil, err
		}
	}

	hash := sha256.Sum256(data)
	version := hex.EncodeToString(hash[:8])

	snap, err := NewSnapshot(version, records, vectors)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	l.logger.Info("Corpus snapshot loaded",
		zap.String("path", l.path),
		zap.String("version", version),
		zap.Int("trials", snap.Len()),
		zap.Int("embedded_at_load", len(missing)),
		zap.Int("dimensions", snap.Dimension()),
	)
	return snap, nil
}

// backfill embeds the canonical text of records without stored vectors.
func (l *Loader) backfill(ctx context.Context, records []domain.TrialRecord, vectors [][]float32, missing []int) error {
	for start := 0; start < len(missing); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = records[idx].EmbeddingText()
		}

		res, err := l.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed corpus batch [%d:%d]: %w", start, end, err)
		}
		if len(res.Embeddings) != len(batch) {
			return fmt.Errorf("embed corpus batch [%d:%d]: got %d vectors for %d texts",
				start, end, len(res.Embeddings), len(batch))
		}
		for j, idx := range batch {
			vectors[idx] = res.Embeddings[j]
		}
	}
	return nil
}
