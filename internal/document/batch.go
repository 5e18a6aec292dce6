package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileResult is the outcome of encrypting a single file during a batch run.
type FileResult struct {
	RelativePath string
	DocumentID   string
	Err          error
}

// BatchResult aggregates per-file outcomes for a directory encryption run
// (§4.3.3). A failure on one file never aborts the others.
type BatchResult struct {
	Results []FileResult
}

// Succeeded returns the subset of results that encrypted without error.
func (r *BatchResult) Succeeded() []FileResult {
	out := make([]FileResult, 0, len(r.Results))
	for _, fr := range r.Results {
		if fr.Err == nil {
			out = append(out, fr)
		}
	}
	return out
}

// Failed returns the subset of results that failed to encrypt.
func (r *BatchResult) Failed() []FileResult {
	out := make([]FileResult, 0)
	for _, fr := range r.Results {
		if fr.Err != nil {
			out = append(out, fr)
		}
	}
	return out
}

// documentIDForPath derives a stable document_id from a file's path relative
// to the batch root, so re-running a batch over the same tree addresses the
// same containers.
func documentIDForPath(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:])
}

func extensionAllowed(name string, allowedExtensions []string) bool {
	if len(allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowedExtensions {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

// BatchEncrypt walks sourceDir, encrypting every regular file whose
// extension is in allowedExtensions (all files if empty) into a container
// under the Encryptor's Storage. Up to workers files are encrypted
// concurrently. One file's failure is recorded and does not stop the rest
// (§4.3.3 "continues past individual file failures").
func BatchEncrypt(
	ctx context.Context,
	enc *Encryptor,
	sourceDir string,
	tenant Tenant,
	complianceLevel string,
	allowedExtensions []string,
	workers int,
) (*BatchResult, error) {
	if workers < 1 {
		workers = 1
	}

	var relPaths []string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !extensionAllowed(d.Name(), allowedExtensions) {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(relPaths)

	results := make([]FileResult, len(relPaths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rel := range relPaths {
		i, rel := i, rel
		g.Go(func() error {
			fr := encryptOne(gctx, enc, sourceDir, rel, tenant, complianceLevel)
			mu.Lock()
			results[i] = fr
			mu.Unlock()
			return nil
		})
	}

	// errgroup's Go func never returns an error itself (failures are
	// captured per-file in FileResult), so Wait only reports ctx
	// cancellation from the caller.
	if err := g.Wait(); err != nil {
		return &BatchResult{Results: results}, err
	}

	return &BatchResult{Results: results}, nil
}

func encryptOne(ctx context.Context, enc *Encryptor, sourceDir, rel string, tenant Tenant, complianceLevel string) FileResult {
	fullPath := filepath.Join(sourceDir, rel)
	documentID := documentIDForPath(rel)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return FileResult{RelativePath: rel, DocumentID: documentID, Err: err}
	}

	_, err = enc.Encrypt(ctx, data, documentID, complianceLevel, tenant, filepath.Base(rel))
	return FileResult{RelativePath: rel, DocumentID: documentID, Err: err}
}
