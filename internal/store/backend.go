package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotFound is returned by a Backend when no document has been
// persisted yet. The store treats it the same as corrupt data: it
// falls back to the default document.
var ErrNotFound = errors.New("store: document not found")

// Backend is the pluggable persistence strategy behind a Store. Save
// receives the full serialized envelope on every write.
type Backend interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// backupBackend is implemented by backends that keep a secondary copy
// of the document alongside the primary one.
type backupBackend interface {
	LoadBackup() ([]byte, error)
}

// MemoryBackend keeps the document in process memory. Used by tests
// and ephemeral tooling.
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (b *MemoryBackend) Save(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make([]byte, len(data))
	copy(b.data, data)
	return nil
}

// FileBackend persists the document to a JSON file. Writes go through
// a temp file and rename so a crash mid-write cannot truncate the
// primary copy. With backups enabled every save also mirrors the
// envelope to <path>.backup wrapped as {data, timestamp}.
type FileBackend struct {
	path   string
	backup bool
}

// backupWrapper mirrors the shape the original site kept in its
// secondary localStorage slot.
type backupWrapper struct {
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// NewFileBackend creates the parent directory if needed.
func NewFileBackend(path string, backup bool) (*FileBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileBackend{path: path, backup: backup}, nil
}

// Path returns the primary file location.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *FileBackend) Save(data []byte) error {
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return err
	}
	if !b.backup {
		return nil
	}
	wrapped, err := json.Marshal(backupWrapper{
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(b.path+".backup", wrapped, 0o644)
}

// LoadBackup returns the envelope mirrored by the last Save.
func (b *FileBackend) LoadBackup() ([]byte, error) {
	raw, err := os.ReadFile(b.path + ".backup")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var wrapped backupWrapper
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parse backup copy: %w", err)
	}
	if len(wrapped.Data) == 0 {
		return nil, ErrNotFound
	}
	return wrapped.Data, nil
}

// RemoteBackend reads and writes the envelope over HTTP against the
// document-sync endpoint. A GET that answers 404 maps to ErrNotFound;
// callers fall back to defaults, matching the fetch-served-file
// behavior of the original site.
type RemoteBackend struct {
	url    string
	client *http.Client
	token  string
}

// NewRemoteBackend targets url (the full document path, e.g.
// "https://host/db/storage.json"). A nil client uses a 10s-timeout
// default. token, when set, is sent as a bearer credential on writes.
func NewRemoteBackend(url string, client *http.Client, token string) *RemoteBackend {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteBackend{url: url, client: client, token: token}
}

func (b *RemoteBackend) Load() ([]byte, error) {
	resp, err := b.client.Get(b.url)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *RemoteBackend) Save(data []byte) error {
	req, err := http.NewRequest(http.MethodPut, b.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("push document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("push document: unexpected status %d", resp.StatusCode)
	}
	return nil
}
