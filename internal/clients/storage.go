package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StorageClient keeps generated files on local disk and serves them under PublicPrefix.
type StorageClient struct {
	BaseDir      string
	PublicPrefix string // e.g. "/files"
	BaseURL      string // optional scheme+host used to build absolute URLs
}

// NewLocalStorage creates baseDir if it does not exist.
func NewLocalStorage(baseDir, publicPrefix, baseURL string) (*StorageClient, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if publicPrefix == "" {
		publicPrefix = "/files"
	}
	if !strings.HasPrefix(publicPrefix, "/") {
		publicPrefix = "/" + publicPrefix
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir %q: %w", baseDir, err)
	}

	return &StorageClient{
		BaseDir:      baseDir,
		PublicPrefix: strings.TrimSuffix(publicPrefix, "/"),
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Save stores data as "<random>_<fileName>" and returns that stored name.
func (s *StorageClient) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	fileName = filepath.Base(fileName)

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", fmt.Errorf("failed to generate file name: %w", err)
	}
	final := hex.EncodeToString(randBytes) + "_" + fileName

	path := filepath.Join(s.BaseDir, final)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	return final, nil
}

// GetURL is BaseURL+PublicPrefix+"/"+fileName, or relative when BaseURL is empty.
func (s *StorageClient) GetURL(fileName string) string {
	return s.BaseURL + s.PublicPrefix + "/" + fileName
}

func (s *StorageClient) PublicURL(ctx context.Context, fileName string) (string, error) {
	return s.GetURL(fileName), nil
}

// Resolve maps a stored name to its path on disk. Names that would escape
// BaseDir are rejected.
func (s *StorageClient) Resolve(fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return "", fmt.Errorf("invalid file name %q", fileName)
	}
	path := filepath.Join(s.BaseDir, fileName)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// DisplayName strips the random prefix added by Save.
func DisplayName(stored string) string {
	if idx := strings.IndexByte(stored, '_'); idx >= 0 {
		return stored[idx+1:]
	}
	return stored
}

// CleanupOlderThan deletes files in BaseDir last modified more than d ago and
// returns how many were removed.
func (s *StorageClient) CleanupOlderThan(d time.Duration) (int, error) {
	now := time.Now()
	removed := 0
	err := filepath.WalkDir(s.BaseDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > d {
			if err := os.Remove(path); err != nil {
				log.Printf("[EXPORT] failed to remove %s: %v", path, err)
				return nil
			}
			removed++
		}
		return nil
	})
	return removed, err
}
