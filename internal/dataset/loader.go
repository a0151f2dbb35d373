package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
	"time"

	"parcelview/internal/crypt"
	"parcelview/internal/errors"
	"parcelview/internal/logging"
	"parcelview/internal/metrics"
)

// Loader decrypts and parses the encrypted dataset, caching results by
// content. A cached Dataset is shared by every session that loads the same
// ciphertext under the same key.
type Loader struct {
	key []byte

	mu      sync.Mutex
	entries map[string]*Dataset
}

// NewLoader returns a Loader that decrypts with key. The key is held in
// memory only and never logged.
func NewLoader(key []byte) *Loader {
	return &Loader{
		key:     key,
		entries: make(map[string]*Dataset),
	}
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// cacheKey combines the ciphertext hash with a fingerprint of the key, so
// rotating the key never serves a dataset decrypted under the old one.
func (l *Loader) cacheKey(ciphertext []byte) string {
	fp := sha256.Sum256(append([]byte("parcelview-key:"), l.key...))
	return Hash(ciphertext) + ":" + hex.EncodeToString(fp[:8])
}

// LoadFile reads the encrypted blob at path and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Dataset, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "read dataset %s", path)
	}
	return l.Load(ctx, ciphertext)
}

// Load returns the Dataset for ciphertext, decrypting and parsing only on a
// cache miss. Failures are not cached; the next call retries from scratch.
func (l *Loader) Load(ctx context.Context, ciphertext []byte) (*Dataset, error) {
	logger := logging.FromContext(ctx)
	key := l.cacheKey(ciphertext)

	// Held across the load so concurrent first requests parse once.
	l.mu.Lock()
	defer l.mu.Unlock()

	if ds, ok := l.entries[key]; ok {
		metrics.DatasetLoadsTotal.WithLabelValues("hit").Inc()
		logger.Debug("dataset cache hit", "key", key[:12])
		return ds, nil
	}

	start := time.Now()
	plain, err := crypt.Decrypt(ciphertext, l.key)
	if err != nil {
		metrics.DatasetLoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	ds, err := Load(ctx, plain)
	if err != nil {
		metrics.DatasetLoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	ds.Key = key

	elapsed := time.Since(start)
	metrics.DatasetLoadsTotal.WithLabelValues("miss").Inc()
	metrics.DatasetLoadDurationMs.Observe(float64(elapsed.Milliseconds()))
	metrics.DatasetParcels.Set(float64(ds.Len()))
	logger.Info("dataset loaded", "parcels", ds.Len(), "crs", ds.SourceCRS.String(), "elapsed", elapsed.Round(time.Millisecond))

	l.entries[key] = ds
	return ds, nil
}

// Len reports how many datasets are cached.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// FileSource loads the encrypted file at Path through Loader on every call.
// The Loader's cache keeps repeat calls to a hash of the file.
type FileSource struct {
	Loader *Loader
	Path   string
}

// Dataset returns the current dataset.
func (f FileSource) Dataset(ctx context.Context) (*Dataset, error) {
	return f.Loader.LoadFile(ctx, f.Path)
}
