package instruments

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/pgzip"

	"kiteclient/logger"
)

// SaveSnapshot writes the catalog to disk as gzipped CSV so later runs in the
// same trading day can skip the download.
func (c *Catalog) SaveSnapshot(path string) error {
	log := logger.GetLogger()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	zw := pgzip.NewWriter(file)
	if err := gocsv.Marshal(c.instruments, zw); err != nil {
		zw.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	log.Info("Saved instrument snapshot", map[string]interface{}{
		"path":  path,
		"count": len(c.instruments),
	})

	return nil
}

// LoadSnapshot reads a catalog previously written by SaveSnapshot.
func LoadSnapshot(path string) (*Catalog, error) {
	log := logger.GetLogger()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	zr, err := pgzip.NewReader(file)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	defer zr.Close()

	var list []Instrument
	if err := gocsv.Unmarshal(zr, &list); err != nil {
		return nil, &ParseError{Err: err}
	}

	log.Info("Loaded instrument snapshot", map[string]interface{}{
		"path":  path,
		"count": len(list),
	})

	return NewCatalog(list), nil
}
