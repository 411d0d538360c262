package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/classify"
	"github.com/hyperjump/reposync/internal/diffplan"
	"github.com/hyperjump/reposync/internal/fileid"
	"github.com/hyperjump/reposync/internal/ingestion"
	"github.com/hyperjump/reposync/internal/models"
	"github.com/hyperjump/reposync/internal/storage"
)

// jobRun carries per-job helpers.
type jobRun struct {
	engine *Engine
	logger *zap.Logger
}

type fileReader func(ctx context.Context, path string) ([]byte, error)

type uploadResult struct {
	pathToIDs map[string][]string
	docs      map[string]string // document ID → path
}

func (j *jobRun) progress(ctx context.Context, msg string) {
	j.engine.update(func(s *models.IndexJobState) { s.Progress = msg })
	j.logger.Debug("index job progress", zap.String("progress", msg))
	j.pause(ctx)
}

func (j *jobRun) pause(ctx context.Context) {
	if j.engine.stepDelay <= 0 {
		return
	}
	t := time.NewTimer(j.engine.stepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (e *Engine) runInitial(ctx context.Context, job *jobRun) error {
	job.progress(ctx, "Reading repository HEAD…")
	head, err := e.repo.HeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("failed to read HEAD: %w", err)
	}
	e.update(func(s *models.IndexJobState) { s.TargetCommit = head })

	existing, err := e.metadata.GetOrCreate(ctx)
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	job.progress(ctx, "Enumerating tracked files…")
	files, err := e.repo.ListTrackedFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked files: %w", err)
	}

	result, err := job.upload(ctx, files, e.repo.ReadWorkingTreeFile, existing.Metadata, "")
	if err != nil {
		return err
	}
	waitErr := job.waitIngestion(ctx, result.docs, "")
	if waitErr != nil && !errors.Is(waitErr, ingestion.ErrIngestionTimeout) {
		return waitErr
	}

	job.progress(ctx, "Updating metadata…")
	if _, err := e.metadata.Save(ctx, existing.Metadata.WithIndexingUpdate(head, result.pathToIDs)); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return waitErr
}

func (e *Engine) runUpdate(ctx context.Context, job *jobRun, target string) error {
	const prefix = "Update: "

	existing, err := e.metadata.GetOrCreate(ctx)
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}
	from := existing.Metadata.LastIndexedCommit()
	if from == "" {
		job.progress(ctx, prefix+"no prior index, running full reload...")
		return e.runFullReload(ctx, job, target, prefix)
	}

	job.progress(ctx, fmt.Sprintf("%sreading changes from %s to %s...", prefix, from, target))
	changes, err := e.repo.Diff(ctx, from, target)
	if err != nil {
		return fmt.Errorf("failed to diff %s..%s: %w", from, target, err)
	}
	plan := diffplan.Build(changes)
	job.progress(ctx, fmt.Sprintf("%s%d file(s) to upload, %d file(s) to delete...", prefix, len(plan.Upload), len(plan.Delete)))

	pathToIDs := copyPathMap(existing.Metadata.PathToDocumentIDsOrEmpty())
	if err := job.deletePaths(ctx, plan.Delete, pathToIDs, prefix); err != nil {
		return err
	}

	readAt := func(ctx context.Context, path string) ([]byte, error) {
		return e.repo.ReadFileAt(ctx, target, path)
	}
	result, err := job.upload(ctx, plan.Upload, readAt, existing.Metadata, prefix)
	if err != nil {
		return err
	}
	for path, ids := range result.pathToIDs {
		pathToIDs[path] = ids
	}

	waitErr := job.waitIngestion(ctx, result.docs, prefix)
	if waitErr != nil && !errors.Is(waitErr, ingestion.ErrIngestionTimeout) {
		return waitErr
	}

	job.progress(ctx, prefix+"updating metadata...")
	if _, err := e.metadata.Save(ctx, existing.Metadata.WithIndexingUpdate(target, pathToIDs)); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return waitErr
}

func (e *Engine) runFullReload(ctx context.Context, job *jobRun, target, prefix string) error {
	existing, err := e.metadata.GetOrCreate(ctx)
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	job.progress(ctx, fmt.Sprintf("%sEnumerating tracked files at %s...", prefix, target))
	files, err := e.repo.ListTrackedFilesAt(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to list files at %s: %w", target, err)
	}

	readAt := func(ctx context.Context, path string) ([]byte, error) {
		return e.repo.ReadFileAt(ctx, target, path)
	}
	result, err := job.upload(ctx, files, readAt, existing.Metadata, prefix)
	if err != nil {
		return err
	}

	previous := copyPathMap(existing.Metadata.PathToDocumentIDsOrEmpty())
	previousPaths := make([]string, 0, len(previous))
	for path := range previous {
		previousPaths = append(previousPaths, path)
	}
	sort.Strings(previousPaths)
	if removed := diffplan.RemovedPaths(previousPaths, result.pathToIDs); len(removed) > 0 {
		if err := job.deletePaths(ctx, removed, previous, prefix); err != nil {
			return err
		}
	}

	waitErr := job.waitIngestion(ctx, result.docs, prefix)
	if waitErr != nil && !errors.Is(waitErr, ingestion.ErrIngestionTimeout) {
		return waitErr
	}

	job.progress(ctx, prefix+"Updating metadata...")
	if _, err := e.metadata.Save(ctx, existing.Metadata.WithIndexingUpdate(target, result.pathToIDs)); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return waitErr
}

// upload classifies and uploads files. Skipped files are counted, not uploaded.
func (j *jobRun) upload(ctx context.Context, files []string, read fileReader, metadata *models.ProjectMetadata, prefix string) (*uploadResult, error) {
	e := j.engine
	classifier := classify.New(metadata.ClassificationRulesOrDefault())

	j.progress(ctx, fmt.Sprintf("%sFound %d tracked files…", prefix, len(files)))
	j.progress(ctx, prefix+"Uploading tracked files…")

	result := &uploadResult{pathToIDs: map[string][]string{}, docs: map[string]string{}}
	uploaded, skipped := 0, 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attrs, ok := classifier.Classify(file)
		if !ok {
			skipped++
			j.logger.Debug("skipping file", zap.String("path", file))
			continue
		}

		e.update(func(s *models.IndexJobState) {
			s.Progress = fmt.Sprintf("%sUploading %d / %d…", prefix, uploaded+1, len(files))
		})
		content, err := read(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		path := attrs.Path()
		id, err := e.store.CreateOrReplace(ctx, fileid.DocumentID(path), content, attrs)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", path, err)
		}
		result.pathToIDs[path] = []string{id}
		result.docs[id] = path
		uploaded++
		j.logger.Debug("uploaded file", zap.String("path", path), zap.String("id", id))
	}

	e.update(func(s *models.IndexJobState) {
		s.Uploaded += uploaded
		s.Skipped += skipped
	})
	j.progress(ctx, fmt.Sprintf("%sUploaded %d file(s); skipped %d file(s)…", prefix, uploaded, skipped))
	return result, nil
}

// deletePaths removes the documents of paths and drops them from pathToIDs. Paths the
// map does not know are looked up in the store listing by their "path" attribute.
func (j *jobRun) deletePaths(ctx context.Context, paths []string, pathToIDs map[string][]string, prefix string) error {
	if len(paths) == 0 {
		return nil
	}
	e := j.engine
	j.progress(ctx, fmt.Sprintf("%sDeleting %d file(s)...", prefix, len(paths)))

	var fallback map[string][]string
	deleted := 0
	for _, p := range paths {
		path := fileid.Normalize(p)
		if path == "" {
			continue
		}
		ids := pathToIDs[path]
		if len(ids) == 0 {
			if fallback == nil {
				files, err := e.store.List(ctx)
				if err != nil {
					return fmt.Errorf("failed to list store documents: %w", err)
				}
				fallback = storage.PathIndex(files, fileid.Normalize)
			}
			ids = fallback[path]
		}
		for _, id := range ids {
			if id == "" {
				continue
			}
			if err := e.store.Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", path, err)
			}
			deleted++
			j.logger.Debug("deleted file", zap.String("path", path), zap.String("id", id))
		}
		delete(pathToIDs, path)
	}

	e.update(func(s *models.IndexJobState) { s.Deleted += deleted })
	j.progress(ctx, fmt.Sprintf("%sDeleted %d file(s)...", prefix, deleted))
	return nil
}

// waitIngestion blocks on the tracker and mirrors every tick into the job state.
func (j *jobRun) waitIngestion(ctx context.Context, docs map[string]string, prefix string) error {
	if len(docs) == 0 {
		return nil
	}
	e := j.engine
	j.progress(ctx, fmt.Sprintf("%sWaiting for ingestion of %d file(s)...", prefix, len(docs)))

	status, err := e.tracker.Wait(ctx, docs, func(s models.IngestionStatus) {
		e.update(func(st *models.IndexJobState) { st.Ingestion = s })
	})
	e.update(func(st *models.IndexJobState) { st.Ingestion = status })
	if err != nil {
		if errors.Is(err, ingestion.ErrIngestionTimeout) {
			j.logger.Warn("ingestion timed out", zap.Int("processing", status.Processing))
			return err
		}
		return fmt.Errorf("failed waiting for ingestion: %w", err)
	}
	if status.Failed > 0 {
		j.logger.Warn("partial ingestion failure",
			zap.Int("failed", status.Failed),
			zap.String("last_error", status.LastError))
	}
	return nil
}

func copyPathMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for path, ids := range in {
		out[path] = append([]string(nil), ids...)
	}
	return out
}
