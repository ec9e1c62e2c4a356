package learning

import (
	"context"
	"fmt"
	"os"
)

// Classifier labels text with a category
type Classifier interface {
	Categorize(text string) (category string, probability float64)
}

// ModelStore persists model blobs
type ModelStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FileStore keeps the model blob in a local file
type FileStore struct {
	Path string
}

// Load reads the blob
func (fs FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return data, nil
}

// Save writes the blob
func (fs FileStore) Save(ctx context.Context, data []byte) error {
	if err := os.WriteFile(fs.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// LoadClassifier fetches a blob from store and decodes it
func LoadClassifier(ctx context.Context, store ModelStore, tokenize TokenizeFunc) (*NaiveBayes, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return UnmarshalModel(data, tokenize)
}

// Ensure both implementations satisfy the interface
var _ Classifier = (*NaiveBayes)(nil)
var _ ModelStore = FileStore{}
var _ ModelStore = (*RedisStore)(nil)
