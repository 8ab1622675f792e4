// Package upload stores user-submitted media on disk and hands back
// public URLs for it.
package upload

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// fallbackContentType is used for extensions outside the known map.
const fallbackContentType = "application/octet-stream"

// contentTypes maps the common media extensions to the MIME type the
// static file route serves them with.
var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
}

// FileStorage writes uploads under a root directory and addresses them
// beneath a public base URL.
type FileStorage struct {
	root    string
	baseURL string
}

// NewFileStorage builds a storage rooted at root. baseURL prefixes the
// returned URLs; empty means site-relative /files/ paths.
func NewFileStorage(root, baseURL string) *FileStorage {
	return &FileStorage{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Saved describes a stored upload.
type Saved struct {
	Filename    string `json:"fileName"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// SaveBase64 decodes a base64 payload (with or without a data: URL
// prefix) and stores it under a fresh random name keeping the original
// extension. Unrecognized extensions are served as octet-stream.
func (s *FileStorage) SaveBase64(originalName, payload string) (Saved, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if ext == "" {
		return Saved{}, fmt.Errorf("filename %q has no extension", originalName)
	}
	contentType, ok := contentTypes[ext]
	if !ok {
		contentType = fallbackContentType
	}

	// Data URLs carry "data:<type>;base64," before the payload.
	if idx := strings.IndexByte(payload, ','); idx >= 0 {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Saved{}, fmt.Errorf("decode payload: %w", err)
	}
	if len(data) == 0 {
		return Saved{}, fmt.Errorf("empty payload")
	}

	filename := uuid.NewString() + "." + ext
	if err := s.ensureRoot(); err != nil {
		return Saved{}, err
	}
	if err := os.WriteFile(filepath.Join(s.root, filename), data, 0o644); err != nil {
		return Saved{}, fmt.Errorf("write upload: %w", err)
	}

	return Saved{
		Filename:    filename,
		URL:         s.URLFor(filename),
		ContentType: contentType,
		Size:        len(data),
	}, nil
}

// URLFor returns the public URL a stored filename is served at.
func (s *FileStorage) URLFor(filename string) string {
	return s.baseURL + "/files/" + filename
}

// Root returns the directory uploads are written to.
func (s *FileStorage) Root() string {
	return s.root
}

// ContentType returns the MIME type a stored filename is served with.
func ContentType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return fallbackContentType
}

func (s *FileStorage) ensureRoot() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("mkdir uploads dir: %w", err)
	}
	return nil
}
