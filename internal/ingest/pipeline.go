package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Karthik0956A/clauseai-2.0/internal/models"
	"github.com/Karthik0956A/clauseai-2.0/internal/redis"

	"github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"
)

// ErrIngestionFailed is the single opaque error surfaced when the external
// upload fails. No partial handle is ever returned.
var ErrIngestionFailed = errors.New("ingestion failed")

// ErrNoFiles reports an empty batch.
var ErrNoFiles = errors.New("no files uploaded")

const (
	// MergeEligibleType is the only format merged page-wise on multi-file
	// batches.
	MergeEligibleType = "application/pdf"

	mergedDisplayName = "merged_documents.pdf"
	contextSnippetLen = 300

	handleCachePrefix = "dochandle:"
	// Files API handles expire after ~48h; cache just under that.
	handleCacheTTL = 47 * time.Hour
)

// File is one uploaded byte stream with its declared MIME type and name.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Uploader is the external store contract consumed by the pipeline.
type Uploader interface {
	Upload(ctx context.Context, path, mimeType, displayName string) (*models.DocumentRef, error)
}

// Pipeline turns uploaded bytes into a stable external document handle.
// The cache is optional; a nil client disables handle reuse.
type Pipeline struct {
	uploader Uploader
	cache    *redis.Client
	log      zerolog.Logger
}

// NewPipeline constructs an ingestion pipeline.
func NewPipeline(uploader Uploader, cache *redis.Client, log zerolog.Logger) *Pipeline {
	return &Pipeline{uploader: uploader, cache: cache, log: log}
}

// Ingest applies the batch policy, uploads the resulting artifact, and
// returns its handle. Every locally-created intermediate lives in one temp
// directory removed on both success and failure paths.
func (p *Pipeline) Ingest(ctx context.Context, files []File) (*models.DocumentRef, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	selected, merge := planBatch(files)

	tempDir, err := os.MkdirTemp("", "clauseai-ingest-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	paths := make([]string, 0, len(selected))
	for i, f := range selected {
		name := filepath.Base(f.Name)
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = "upload"
		}
		path := filepath.Join(tempDir, fmt.Sprintf("%02d-%s", i, name))
		if err := os.WriteFile(path, f.Data, 0o600); err != nil {
			return nil, fmt.Errorf("write temp file: %w", err)
		}
		paths = append(paths, path)
	}

	finalPath := paths[0]
	mimeType := selected[0].MIMEType
	displayName := filepath.Base(selected[0].Name)
	if merge {
		finalPath = filepath.Join(tempDir, mergedDisplayName)
		if err := mergeFiles(paths, finalPath); err != nil {
			p.log.Error().Err(err).Int("files", len(paths)).Msg("pdf merge failed")
			return nil, ErrIngestionFailed
		}
		mimeType = MergeEligibleType
		displayName = mergedDisplayName
	}

	artifact, err := os.ReadFile(finalPath)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	cacheKey := handleCacheKey(artifact)
	if ref := p.cachedHandle(ctx, cacheKey); ref != nil {
		return ref, nil
	}

	ref, err := p.uploader.Upload(ctx, finalPath, mimeType, displayName)
	if err != nil {
		p.log.Error().Err(err).Str("name", displayName).Msg("document upload failed")
		return nil, ErrIngestionFailed
	}
	if mimeType == MergeEligibleType {
		ref.Context = pdfSnippet(finalPath)
	}

	p.storeHandle(ctx, cacheKey, ref)
	return ref, nil
}

// mergeFiles concatenates the inputs page-wise. pdfcpu can panic on some
// malformed inputs; that surfaces here as an error, not a crash.
func mergeFiles(paths []string, outPath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("merge pdfs: %v", r)
		}
	}()
	return pdfapi.MergeCreateFile(paths, outPath, false, nil)
}

// planBatch selects the files that get processed and whether they are
// merged. A multi-file batch is merged only when every file is the
// merge-eligible type; otherwise only the first file in submission order is
// kept and the rest are ignored.
func planBatch(files []File) ([]File, bool) {
	if len(files) <= 1 {
		return files, false
	}
	for _, f := range files {
		if f.MIMEType != MergeEligibleType {
			return files[:1], false
		}
	}
	return files, true
}

func handleCacheKey(artifact []byte) string {
	sum := sha256.Sum256(artifact)
	return handleCachePrefix + hex.EncodeToString(sum[:])
}

func (p *Pipeline) cachedHandle(ctx context.Context, key string) *models.DocumentRef {
	raw, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			p.log.Warn().Err(err).Msg("handle cache lookup failed")
		}
		return nil
	}
	var ref models.DocumentRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return nil
	}
	return &ref
}

func (p *Pipeline) storeHandle(ctx context.Context, key string, ref *models.DocumentRef) {
	raw, err := json.Marshal(ref)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, string(raw), handleCacheTTL); err != nil {
		p.log.Warn().Err(err).Msg("handle cache store failed")
	}
}

// pdfSnippet extracts a short plain-text lead from the artifact for the
// handle's context field. Best effort; extraction failures yield "".
func pdfSnippet(path string) string {
	f, r, err := pdf.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	buf := make([]byte, contextSnippetLen)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.TrimSpace(string(buf[:n]))
}
