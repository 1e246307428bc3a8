package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/versions"
	"github.com/rs/zerolog"
)

const (
	archivePrefix     = "llamaforge-version-"
	archiveSuffix     = ".tar.gz"
	archiveTimeFormat = "2006-01-02-150405"
	archiveFormat     = "1"

	payloadName  = "version.msgpack"
	metadataName = "archive-metadata.json"

	// minArchivesToKeep survive rotation regardless of age
	minArchivesToKeep = 3
)

// ErrCorruptArchive is returned when an archive is unreadable or its checksum does not match
var ErrCorruptArchive = errors.New("corrupt version archive")

// ObjectStore is the subset of R2Client the archive service needs
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Location(key string) string
}

// ArchiveMetadata is stored next to the encoded version inside each archive
type ArchiveMetadata struct {
	Format     string           `json:"format"`
	ArchivedAt time.Time        `json:"archived_at"`
	VersionID  string           `json:"version_id"`
	Name       string           `json:"name"`
	Status     domain.RunStatus `json:"status"`
	Steps      int              `json:"steps"`
	SizeBytes  int              `json:"size_bytes"`
	Checksum   string           `json:"checksum"`
}

// ArchiveInfo represents an archive stored in the bucket
type ArchiveInfo struct {
	Key        string    `json:"key"`
	VersionID  string    `json:"version_id"`
	ArchivedAt time.Time `json:"archived_at"`
	SizeBytes  int64     `json:"size_bytes"`
	AgeHours   int64     `json:"age_hours"`
}

// VersionArchiveService writes model versions to object storage as tar.gz
// archives holding the msgpack-encoded version and a JSON metadata file.
type VersionArchiveService struct {
	store ObjectStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewVersionArchiveService creates a new archive service
func NewVersionArchiveService(store ObjectStore, log zerolog.Logger) *VersionArchiveService {
	return &VersionArchiveService{
		store: store,
		now:   time.Now,
		log:   log.With().Str("service", "version_archive").Logger(),
	}
}

// Archive uploads v and returns its location
func (s *VersionArchiveService) Archive(ctx context.Context, v domain.ModelVersion) (string, error) {
	startTime := s.now()

	payload, err := versions.Encode(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode version: %w", err)
	}

	metadata := ArchiveMetadata{
		Format:     archiveFormat,
		ArchivedAt: startTime.UTC(),
		VersionID:  v.ID,
		Name:       v.Name,
		Status:     v.Status,
		Steps:      len(v.Metrics),
		SizeBytes:  len(payload),
		Checksum:   checksum(payload),
	}

	archive, err := buildArchive(payload, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	key := archiveKey(v.ID, startTime)
	if err := s.store.Upload(ctx, key, bytes.NewReader(archive), int64(len(archive))); err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	location := s.store.Location(key)
	s.log.Info().
		Str("id", v.ID).
		Str("key", key).
		Int("size_bytes", len(archive)).
		Dur("duration_ms", s.now().Sub(startTime)).
		Msg("Version archived")

	return location, nil
}

// Fetch downloads and decodes the archive stored under key
func (s *VersionArchiveService) Fetch(ctx context.Context, key string) (domain.ModelVersion, ArchiveMetadata, error) {
	body, err := s.store.Download(ctx, key)
	if err != nil {
		return domain.ModelVersion{}, ArchiveMetadata{}, err
	}
	defer body.Close()
	return ReadArchive(body)
}

// ListArchives lists archives in the bucket, newest first
func (s *VersionArchiveService) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	now := s.now()
	archives := make([]ArchiveInfo, 0, len(objects))
	for _, obj := range objects {
		id, at, ok := parseArchiveKey(obj.Key)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping unrecognized archive key")
			continue
		}
		archives = append(archives, ArchiveInfo{
			Key:        obj.Key,
			VersionID:  id,
			ArchivedAt: at,
			SizeBytes:  obj.SizeBytes,
			AgeHours:   int64(now.Sub(at).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].ArchivedAt.After(archives[j].ArchivedAt)
	})
	return archives, nil
}

// RotateOldArchives deletes archives older than retentionDays.
// The newest archives are always kept; retentionDays <= 0 keeps everything.
func (s *VersionArchiveService) RotateOldArchives(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	archives, err := s.ListArchives(ctx)
	if err != nil {
		return 0, err
	}
	if len(archives) <= minArchivesToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, a := range archives[minArchivesToKeep:] {
		if !a.ArchivedAt.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, a.Key); err != nil {
			s.log.Error().Err(err).Str("key", a.Key).Msg("Failed to delete old archive")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Archive rotation completed")
	return deleted, nil
}

// ReadArchive decodes an archive produced by Archive and verifies its checksum
func ReadArchive(r io.Reader) (domain.ModelVersion, ArchiveMetadata, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return domain.ModelVersion{}, ArchiveMetadata{}, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer gz.Close()

	var payload []byte
	var metadata ArchiveMetadata
	var haveMetadata bool

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.ModelVersion{}, ArchiveMetadata{}, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return domain.ModelVersion{}, ArchiveMetadata{}, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		switch header.Name {
		case payloadName:
			payload = data
		case metadataName:
			if err := json.Unmarshal(data, &metadata); err != nil {
				return domain.ModelVersion{}, ArchiveMetadata{}, fmt.Errorf("%w: metadata: %v", ErrCorruptArchive, err)
			}
			haveMetadata = true
		}
	}

	if payload == nil || !haveMetadata {
		return domain.ModelVersion{}, ArchiveMetadata{}, fmt.Errorf("%w: missing entries", ErrCorruptArchive)
	}
	if checksum(payload) != metadata.Checksum {
		return domain.ModelVersion{}, ArchiveMetadata{}, fmt.Errorf("%w: checksum mismatch", ErrCorruptArchive)
	}

	v, err := versions.Decode(payload)
	if err != nil {
		return domain.ModelVersion{}, ArchiveMetadata{}, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	return v, metadata, nil
}

func buildArchive(payload []byte, metadata ArchiveMetadata) ([]byte, error) {
	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	entries := []struct {
		name string
		data []byte
	}{
		{payloadName, payload},
		{metadataName, metadataJSON},
	}
	for _, e := range entries {
		header := &tar.Header{
			Name:    e.name,
			Size:    int64(len(e.data)),
			Mode:    0644,
			ModTime: metadata.ArchivedAt,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, err
		}
		if _, err := tw.Write(e.data); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}

// archiveKey names an archive: llamaforge-version-<id>-2026-01-08-143022.tar.gz
func archiveKey(id string, at time.Time) string {
	return archivePrefix + id + "-" + at.UTC().Format(archiveTimeFormat) + archiveSuffix
}

func parseArchiveKey(key string) (string, time.Time, bool) {
	if !strings.HasPrefix(key, archivePrefix) || !strings.HasSuffix(key, archiveSuffix) {
		return "", time.Time{}, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(key, archivePrefix), archiveSuffix)
	if len(rest) < len(archiveTimeFormat)+2 {
		return "", time.Time{}, false
	}

	split := len(rest) - len(archiveTimeFormat)
	at, err := time.Parse(archiveTimeFormat, rest[split:])
	if err != nil || rest[split-1] != '-' {
		return "", time.Time{}, false
	}
	return rest[:split-1], at, true
}
