package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"
)

// CSVRepository reads the scraped catalog from the append-only CSV file the
// ingestion layer writes. Every snapshot re-reads the whole file.
type CSVRepository struct {
	path   string
	logger *zap.Logger
}

// NewCSVRepository creates a repository over the CSV file at path
func NewCSVRepository(path string, logger *zap.Logger) *CSVRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVRepository{path: path, logger: logger}
}

// Snapshot loads every row. The version is a content hash, so it changes
// whenever rows are appended.
func (r *CSVRepository) Snapshot(ctx context.Context) (*domain.CatalogSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", domain.ErrNoCatalog, r.path)
		}
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	records, err := DecodeCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	snapshot := &domain.CatalogSnapshot{
		Records: records,
		Version: hex.EncodeToString(sum[:8]),
	}

	r.logger.Debug("catalog loaded",
		zap.String("path", r.path),
		zap.Int("rows", len(records)),
		zap.String("version", snapshot.Version),
	)

	return snapshot, nil
}

// DecodeCSV decodes catalog rows from CSV with the ingestion header.
// An input with no header is an empty catalog.
func DecodeCSV(in io.Reader) ([]domain.RawRecord, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	decoder, err := csvutil.NewDecoder(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	var records []domain.RawRecord
	if err := decoder.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode CSV: %w", err)
	}

	return records, nil
}
