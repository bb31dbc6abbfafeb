package retention

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
)

// Engine enforces recording retention: expired segments go first, then
// the oldest unarchived segments until disk pressure drops below the
// critical threshold. Archived recordings are never evicted.
type Engine struct {
	store       *Store
	roots       []string
	criticalPct float64

	diskUsage  DiskUsageFunc
	removeFile func(path string) error
	now        func() time.Time

	mu       sync.Mutex
	sweeping bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewEngine creates a retention engine over the given storage roots.
func NewEngine(store *Store, roots []string, criticalUsagePercent float64) *Engine {
	return &Engine{
		store:       store,
		roots:       roots,
		criticalPct: criticalUsagePercent,
		diskUsage:   StatfsUsage,
		removeFile:  os.Remove,
		now:         time.Now,
	}
}

// Status returns aggregate recording stats and the current disk
// pressure across all storage roots. Disk usage reports the most
// pressured root; free space is summed.
func (e *Engine) Status() (*models.RetentionStatus, error) {
	stats, err := e.store.Stats()
	if err != nil {
		return nil, err
	}

	disk := models.DiskStats{}
	for _, root := range e.roots {
		usage, err := e.diskUsage(root)
		if err != nil {
			log.Warn().Str("root", root).Err(err).Msg("Failed to read disk usage")
			continue
		}
		if pct := usage.UsagePercent(); pct > disk.UsagePercent {
			disk.UsagePercent = pct
		}
		disk.FreeGB += float64(usage.SpaceAvailable) / (1 << 30)
	}
	disk.IsCritical = disk.UsagePercent >= e.criticalPct

	return &models.RetentionStatus{Recordings: stats, Disk: disk}, nil
}

// Archive pins a recording: it is excluded from every future sweep.
func (e *Engine) Archive(recordingID int64) error {
	return e.store.Archive(recordingID)
}

// RunCleanup performs one retention sweep. Expired unarchived segments
// are deleted first; then, per storage root, the oldest unarchived
// segments are deleted until usage falls below the critical threshold.
// A dry run reports the same work without touching files or metadata,
// so running it twice yields identical results. Only one sweep runs at
// a time.
func (e *Engine) RunCleanup(ctx context.Context, dryRun bool) (*models.CleanupResult, error) {
	e.mu.Lock()
	if e.sweeping {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: retention sweep", models.ErrAlreadyInProgress)
	}
	e.sweeping = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.sweeping = false
		e.mu.Unlock()
	}()

	result := &models.CleanupResult{DryRun: dryRun}
	deleted := map[int64]bool{}
	freedPerRoot := map[string]int64{}

	expired, err := e.store.ExpiredUnarchived(e.now())
	if err != nil {
		return result, err
	}
	for _, recording := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.delete(recording, dryRun, result); err != nil {
			log.Warn().Int64("recording_id", recording.ID).Err(err).Msg("Failed to delete expired recording")
			continue
		}
		deleted[recording.ID] = true
		if root := e.rootFor(recording.FilePath); root != "" {
			freedPerRoot[root] += recording.FileSize
		}
	}

	for _, root := range e.roots {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		usage, err := e.diskUsage(root)
		if err != nil {
			log.Warn().Str("root", root).Err(err).Msg("Skipping pressure check, disk usage unavailable")
			continue
		}
		used := usage.SpaceUsed
		if dryRun {
			// A dry run removed nothing, so discount what the expiry
			// pass would have freed.
			used -= freedPerRoot[root]
		}

		candidates, err := e.store.EvictionCandidates(root)
		if err != nil {
			return result, err
		}

		for _, recording := range candidates {
			if usage.TotalSpace <= 0 || float64(used)/float64(usage.TotalSpace)*100 < e.criticalPct {
				break
			}
			if deleted[recording.ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := e.delete(recording, dryRun, result); err != nil {
				log.Warn().Int64("recording_id", recording.ID).Err(err).Msg("Failed to evict recording")
				continue
			}
			deleted[recording.ID] = true
			used -= recording.FileSize
		}
	}

	log.Info().
		Int("deleted", result.DeletedCount).
		Str("freed", humanize.IBytes(uint64(result.FreedBytes))).
		Bool("dry_run", dryRun).
		Msg("Retention sweep finished")
	return result, nil
}

// delete removes one recording's file and metadata, or only counts it
// during a dry run. A file already gone on disk is not an error; the
// metadata row is stale and gets cleaned up anyway.
func (e *Engine) delete(recording models.Recording, dryRun bool, result *models.CleanupResult) error {
	if !dryRun {
		if err := e.removeFile(recording.FilePath); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := e.store.Delete(recording.ID); err != nil {
			return err
		}
	}
	result.DeletedCount++
	result.FreedBytes += recording.FileSize
	return nil
}

func (e *Engine) rootFor(path string) string {
	for _, root := range e.roots {
		if strings.HasPrefix(path, root) {
			return root
		}
	}
	return ""
}

// StartScheduler runs periodic sweeps until Stop is called. A zero or
// negative interval disables scheduling.
func (e *Engine) StartScheduler(interval time.Duration) {
	if interval <= 0 {
		return
	}
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})

	go func() {
		defer close(e.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("Retention scheduler started")
		for {
			select {
			case <-ticker.C:
				if _, err := e.RunCleanup(context.Background(), false); err != nil {
					log.Error().Err(err).Msg("Scheduled retention sweep failed")
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop halts the scheduler and waits for an in-flight sweep loop to
// exit.
func (e *Engine) Stop() {
	if e.stopCh == nil {
		return
	}
	close(e.stopCh)
	<-e.doneCh
	log.Info().Msg("Retention scheduler stopped")
}
