package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync-cli/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.Syncer = (*SyncOrchestrator)(nil)

// SyncOrchestrator is the reconciliation engine. It partitions the
// current item list against persisted state, runs the three category
// pipelines in fixed order (new, updated, deleted) and commits state
// after each category, so a crash never loses a completed category.
//
// Single-writer precondition: at most one run may operate on a given
// state directory at a time. This is documented, not enforced.
type SyncOrchestrator struct {
	source      driven.ContentSource
	transformer driven.ContentTransformer
	index       driven.IndexClient
	stateStore  driven.StateStore
	artifacts   driven.ArtifactStore
	detector    *ChangeDetector
	pacer       *Pacer

	collectionName string

	// now supplies the marker clock. Injectable for tests.
	now func() time.Time

	// collectionID is resolved lazily on first use.
	collectionID string
}

// NewSyncOrchestrator creates a sync orchestrator. The pacer may be
// nil, in which case default pacing is used.
func NewSyncOrchestrator(
	source driven.ContentSource,
	transformer driven.ContentTransformer,
	index driven.IndexClient,
	stateStore driven.StateStore,
	artifacts driven.ArtifactStore,
	collectionName string,
	pacer *Pacer,
) *SyncOrchestrator {
	if pacer == nil {
		pacer = NewPacer(PacerConfig{})
	}
	return &SyncOrchestrator{
		source:         source,
		transformer:    transformer,
		index:          index,
		stateStore:     stateStore,
		artifacts:      artifacts,
		detector:       NewChangeDetector(),
		pacer:          pacer,
		collectionName: collectionName,
		now:            time.Now,
	}
}

// Run executes one sync pass. A non-nil error is fatal (listing or
// state persistence failed); per-item and per-batch failures are
// reported in the summary and do not block the marker advance.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *SyncOrchestrator) Run(ctx context.Context, opts driving.RunOptions) (*driving.RunSummary, error) {
	summary := &driving.RunSummary{RunID: uuid.New().String()}

	// 1. Load persisted state
	state, err := o.stateStore.LoadState(ctx)
	if err != nil {
		return summary, fmt.Errorf("load state: %w", err)
	}
	// A missing descriptor means the collection has not been created
	// yet; any other failure is fatal, or a corrupt descriptor would
	// silently spawn a fresh collection and orphan the old attachments.
	info, err := o.stateStore.LoadCollection(ctx)
	switch {
	case err == nil:
		o.collectionID = info.CollectionID
	case !errors.Is(err, domain.ErrNotFound):
		return summary, fmt.Errorf("load collection descriptor: %w", err)
	}

	// 2. First run (or --force-full): full resync, every item is new
	if opts.ForceFull || state.IsEmpty() {
		summary.FullResync = true
		logger.Info("No prior state (or full resync forced) - treating every item as new")
		state = domain.NewSyncState()
	}

	// 3. List current items
	items, err := o.source.List(ctx, opts.MaxItems)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", domain.ErrListItems, err)
	}
	logger.Info("Listed %d items from source", len(items))

	// 4. Detect changes
	var changes domain.ChangeSet
	if summary.FullResync {
		changes = domain.ChangeSet{New: items}
	} else {
		changes = o.detector.Detect(items, state)
	}
	summary.Unchanged = len(changes.Unchanged)
	logger.Info("Changes: %d new, %d updated, %d deleted, %d unchanged",
		len(changes.New), len(changes.Updated), len(changes.Deleted), len(changes.Unchanged))

	if changes.IsEmpty() {
		logger.Info("No changes detected")
		if err := o.advanceMarker(ctx, summary); err != nil {
			return summary, err
		}
		// The descriptor tracks when a run last touched the
		// collection, so quiet runs refresh it as well.
		o.refreshCollectionStats(ctx)
		return summary, nil
	}

	working := state.Clone()

	// 5. Category pipelines in fixed order, each committed before the
	// next starts.
	if len(changes.New) > 0 {
		logger.Section("New items")
		result := o.processNew(ctx, changes.New)
		summary.Added = len(result.Succeeded)
		recordFailures(summary, result.Failures)
		for id, ext := range result.NewMapping {
			working.Mapping[id] = ext
		}
		if err := o.stateStore.SaveMapping(ctx, working.Mapping); err != nil {
			return summary, fmt.Errorf("commit new items: %w", err)
		}
	}

	if len(changes.Updated) > 0 {
		logger.Section("Updated items")
		result := o.processUpdated(ctx, changes.Updated, working)
		summary.Updated = len(result.Succeeded)
		recordFailures(summary, result.Failures)
		for id, ext := range result.NewMapping {
			working.Mapping[id] = ext
		}
		if err := o.stateStore.SaveMapping(ctx, working.Mapping); err != nil {
			return summary, fmt.Errorf("commit updated items: %w", err)
		}
	}

	if len(changes.Deleted) > 0 {
		logger.Section("Deleted items")
		result := o.processDeleted(ctx, changes.Deleted, working)
		summary.Deleted = len(result.Succeeded)
		recordFailures(summary, result.Failures)
		// Local removal is the authoritative signal: entries go even
		// if remote cleanup failed.
		for _, id := range result.Succeeded {
			delete(working.Mapping, id)
		}
		if err := o.stateStore.SaveMapping(ctx, working.Mapping); err != nil {
			return summary, fmt.Errorf("commit deleted items: %w", err)
		}
	}

	// 6. Advance the marker; per-item/per-batch failures do not block
	// this, only fatal errors do (and those returned earlier).
	if err := o.advanceMarker(ctx, summary); err != nil {
		return summary, err
	}

	o.refreshCollectionStats(ctx)

	logger.Info("Run %s complete: %d added, %d updated, %d deleted, %d unchanged, %d failed",
		summary.RunID, summary.Added, summary.Updated, summary.Deleted, summary.Unchanged, summary.Failed)
	return summary, nil
}

// processNew runs the new-item pipeline: fetch+transform each item
// independently, then batch register, attach and poll.
func (o *SyncOrchestrator) processNew(ctx context.Context, items []domain.Item) domain.PipelineResult {
	var result domain.PipelineResult

	docs, ok := o.fetchAndTransform(ctx, items, &result)
	if len(docs) == 0 {
		return result
	}

	mapping, err := o.registerAndAttach(ctx, ok, docs)
	if err != nil {
		result.Failures = append(result.Failures, domain.FailAll(ok, err)...)
		return result
	}

	result.NewMapping = mapping
	for id := range mapping {
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// processUpdated runs the updated-item pipeline. Old artifacts are
// detached and deleted best-effort before the new versions are
// registered; a failed cleanup never blocks the update.
func (o *SyncOrchestrator) processUpdated(ctx context.Context, items []domain.Item, state domain.SyncState) domain.PipelineResult {
	var result domain.PipelineResult

	// Items with no prior mapping entry are inconsistent state: fail
	// them, never treat them as new.
	var known []domain.Item
	var oldIDs []string
	for _, item := range items {
		oldID, ok := state.Mapping[item.ID]
		if !ok {
			logger.Warn("No mapping entry for updated item %s", item.ID)
			result.Failures = append(result.Failures, domain.ItemFailure{
				ItemID: item.ID, Title: item.Title, Err: domain.ErrMappingMissing,
			})
			continue
		}
		known = append(known, item)
		oldIDs = append(oldIDs, oldID)
	}

	docs, ok := o.fetchAndTransform(ctx, known, &result)
	if len(docs) == 0 {
		return result
	}

	// Only clean up objects belonging to items that actually have a
	// new version to register.
	oldIDs = oldIDs[:0]
	for _, item := range ok {
		oldIDs = append(oldIDs, state.Mapping[item.ID])
	}
	o.cleanupRemote(ctx, oldIDs)

	mapping, err := o.registerAndAttach(ctx, ok, docs)
	if err != nil {
		// Old objects may already be gone; the mapping keeps pointing
		// at them until a later run reconciles.
		result.Failures = append(result.Failures, domain.FailAll(ok, err)...)
		return result
	}

	result.NewMapping = mapping
	for id := range mapping {
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// processDeleted runs the deleted-item pipeline: remove local
// artifacts, then detach and delete the remote objects best-effort.
func (o *SyncOrchestrator) processDeleted(ctx context.Context, ids []string, state domain.SyncState) domain.PipelineResult {
	var result domain.PipelineResult

	var externalIDs []string
	for _, id := range ids {
		if err := o.artifacts.Remove(ctx, id); err != nil {
			logger.Error("Failed to remove artifact for %s: %v", id, err)
			result.Failures = append(result.Failures, domain.ItemFailure{ItemID: id, Err: err})
			continue
		}
		logger.Debug("Removed local artifact for %s", id)
		result.Succeeded = append(result.Succeeded, id)
		if ext, ok := state.Mapping[id]; ok {
			externalIDs = append(externalIDs, ext)
		}
	}

	o.cleanupRemote(ctx, externalIDs)
	return result
}

// fetchAndTransform processes items one at a time; a failing item is
// recorded and excluded without blocking its siblings. Returns the
// documents and the items they came from, index-aligned.
func (o *SyncOrchestrator) fetchAndTransform(ctx context.Context, items []domain.Item, result *domain.PipelineResult) ([]domain.Document, []domain.Item) {
	docs := make([]domain.Document, 0, len(items))
	ok := make([]domain.Item, 0, len(items))

	for _, item := range items {
		logger.Debug("Processing %s: %s", item.ID, item.Title)
		doc, err := o.prepareDocument(ctx, item)
		if err != nil {
			logger.Error("Failed to process item %s: %v", item.ID, err)
			result.Failures = append(result.Failures, domain.ItemFailure{ItemID: item.ID, Title: item.Title, Err: err})
			continue
		}
		docs = append(docs, *doc)
		ok = append(ok, item)
	}

	return docs, ok
}

// prepareDocument fetches, transforms and locally persists one item.
func (o *SyncOrchestrator) prepareDocument(ctx context.Context, item domain.Item) (*domain.Document, error) {
	raw, err := o.source.Fetch(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	doc, err := o.transformer.ToDocument(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransform, err)
	}
	if _, err := o.artifacts.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	return doc, nil
}

// registerAndAttach runs the shared batch tail of the new and updated
// pipelines: register all documents in one call, ensure the
// collection, attach, and poll to a terminal status. Any error fails
// the whole batch - no per-item result is observable at this
// granularity.
func (o *SyncOrchestrator) registerAndAttach(ctx context.Context, items []domain.Item, docs []domain.Document) (map[string]string, error) {
	logger.Info("Registering %d documents", len(docs))
	mapping, err := o.index.RegisterBatch(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBatchRegister, err)
	}
	if err := o.pacer.Pause(ctx); err != nil {
		return nil, err
	}

	collectionID, err := o.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	externalIDs := make([]string, 0, len(items))
	for _, item := range items {
		ext, ok := mapping[item.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no object id returned for item %s", domain.ErrBatchRegister, item.ID)
		}
		externalIDs = append(externalIDs, ext)
	}

	logger.Info("Attaching %d objects to collection %s", len(externalIDs), collectionID)
	batchID, err := o.index.AttachBatch(ctx, collectionID, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBatchAttach, err)
	}

	status, err := o.pacer.PollUntilTerminal(ctx, func(ctx context.Context) (domain.BatchStatus, error) {
		s, err := o.index.BatchStatus(ctx, collectionID, batchID)
		if err == nil {
			logger.Debug("Attach batch %s: %s", batchID, s)
		}
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBatchAttach, err)
	}
	if !status.Succeeded() {
		return nil, fmt.Errorf("%w: batch %s ended %s", domain.ErrBatchAttach, batchID, status)
	}
	if err := o.pacer.Pause(ctx); err != nil {
		return nil, err
	}

	return mapping, nil
}

// ensureCollection resolves the target collection, creating it lazily
// on first use and persisting its descriptor.
func (o *SyncOrchestrator) ensureCollection(ctx context.Context) (string, error) {
	if o.collectionID != "" {
		return o.collectionID, nil
	}

	id, err := o.index.EnsureCollection(ctx, o.collectionName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCollection, err)
	}
	o.collectionID = id
	logger.Info("Collection %q ready: %s", o.collectionName, id)

	now := o.now().UTC()
	info := domain.CollectionInfo{CollectionID: id, CreatedAt: now, LastUpdated: now}
	if err := o.stateStore.SaveCollection(ctx, info); err != nil {
		return "", fmt.Errorf("save collection descriptor: %w", err)
	}
	return id, nil
}

// cleanupRemote detaches and deletes objects best-effort. Failures
// are logged and never abort the pipeline; orphans are reconciled by
// a later full resync.
func (o *SyncOrchestrator) cleanupRemote(ctx context.Context, externalIDs []string) {
	if len(externalIDs) == 0 {
		return
	}

	if o.collectionID != "" {
		logger.Info("Detaching %d objects from collection", len(externalIDs))
		if err := o.index.DetachBatch(ctx, o.collectionID, externalIDs); err != nil {
			logger.Warn("Batch detach failed (continuing): %v", err)
		}
		if err := o.pacer.Pause(ctx); err != nil {
			return
		}
	}

	logger.Info("Deleting %d storage objects", len(externalIDs))
	if err := o.index.DeleteBatch(ctx, externalIDs); err != nil {
		logger.Warn("Batch delete failed (continuing): %v", err)
	}
	if err := o.pacer.Pause(ctx); err != nil {
		return
	}
}

// advanceMarker persists a fresh last-run marker. Called only when no
// fatal error occurred.
func (o *SyncOrchestrator) advanceMarker(ctx context.Context, summary *driving.RunSummary) error {
	marker := domain.MarkerFromTime(o.now())
	if err := o.stateStore.SaveLastRunMarker(ctx, marker); err != nil {
		return fmt.Errorf("save last-run marker: %w", err)
	}
	logger.Debug("Run %s advanced marker to %s", summary.RunID, marker)
	return nil
}

// refreshCollectionStats updates the persisted descriptor with
// service-side statistics. Best effort; a summary nicety only.
func (o *SyncOrchestrator) refreshCollectionStats(ctx context.Context) {
	if o.collectionID == "" {
		return
	}

	info, err := o.stateStore.LoadCollection(ctx)
	if err != nil {
		return
	}

	if stats, err := o.index.CollectionStats(ctx, o.collectionID); err == nil {
		info.Stats = stats
		logger.Info("Collection stats: %d files (%d completed, %d failed), %d bytes",
			stats.TotalFiles, stats.CompletedFiles, stats.FailedFiles, stats.UsageBytes)
	} else {
		logger.Debug("Collection stats unavailable: %v", err)
	}

	info.LastUpdated = o.now().UTC()
	if err := o.stateStore.SaveCollection(ctx, *info); err != nil {
		logger.Warn("Failed to save collection descriptor: %v", err)
	}
}

// recordFailures folds pipeline failures into the run summary.
func recordFailures(summary *driving.RunSummary, failures []domain.ItemFailure) {
	for _, f := range failures {
		logger.Warn("Failed: %s", f.Error())
	}
	summary.Failed += len(failures)
}
