package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/shashiranjanraj/catalogsync/app/models"
	"github.com/shashiranjanraj/catalogsync/pkg/event"
	"github.com/shashiranjanraj/catalogsync/pkg/logger"
	"github.com/shashiranjanraj/catalogsync/pkg/storage"
)

const (
	defaultSnapshotDir  = "snapshots"
	defaultSnapshotKeep = 24
	latestSnapshotName  = "latest.json"
)

// SnapshotSource is what the exporter reads from.
type SnapshotSource interface {
	ReadAll(ctx context.Context) ([]models.Product, error)
}

// Snapshot is the document written to the disk.
type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	RunID       string           `json:"run_id,omitempty"`
	Count       int              `json:"count"`
	Products    []models.Product `json:"products"`
}

// SnapshotInfo describes one finished export.
type SnapshotInfo struct {
	Path  string `json:"path"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// SnapshotExporter writes the stored catalog to a storage disk as JSON,
// once per call to Export or after every successful sync when attached to a
// bus with Listen.
type SnapshotExporter struct {
	source SnapshotSource
	disk   storage.Disk
	dir    string
	keep   int
	log    *slog.Logger
	now    func() time.Time
}

// ExporterOption configures a SnapshotExporter.
type ExporterOption func(*SnapshotExporter)

// WithSnapshotDir sets the directory snapshots are written to.
func WithSnapshotDir(dir string) ExporterOption {
	return func(e *SnapshotExporter) { e.dir = strings.Trim(dir, "/") }
}

// WithSnapshotKeep sets how many timestamped snapshots are retained.
func WithSnapshotKeep(n int) ExporterOption {
	return func(e *SnapshotExporter) {
		if n > 0 {
			e.keep = n
		}
	}
}

func WithExporterLogger(l *slog.Logger) ExporterOption {
	return func(e *SnapshotExporter) { e.log = l }
}

func NewSnapshotExporter(source SnapshotSource, disk storage.Disk, opts ...ExporterOption) *SnapshotExporter {
	e := &SnapshotExporter{
		source: source,
		disk:   disk,
		dir:    defaultSnapshotDir,
		keep:   defaultSnapshotKeep,
		log:    logger.L,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Listen exports after every EventSynced on bus. Failures are logged and
// never reach the sync caller.
func (e *SnapshotExporter) Listen(bus *event.Bus) {
	bus.Listen(EventSynced, func(payload interface{}) {
		result, _ := payload.(SyncResult)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		info, err := e.Export(ctx, result.RunID)
		if err != nil {
			e.log.Error("snapshot: export failed", "run_id", result.RunID, "error", err)
			return
		}
		e.log.Info("snapshot: exported", "run_id", result.RunID, "path", info.Path, "count", info.Count)
	})
}

// Export writes <dir>/products-<unix>.json and <dir>/latest.json, then
// prunes old timestamped snapshots. An unreadable store fails the export
// rather than writing an empty snapshot.
func (e *SnapshotExporter) Export(ctx context.Context, runID string) (SnapshotInfo, error) {
	products, err := e.source.ReadAll(ctx)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("snapshot: read catalog: %w", err)
	}

	now := e.now().UTC()
	body, err := json.MarshalIndent(Snapshot{
		GeneratedAt: now,
		RunID:       runID,
		Count:       len(products),
		Products:    products,
	}, "", "  ")
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("snapshot: encode: %w", err)
	}

	name := path.Join(e.dir, fmt.Sprintf("products-%d.json", now.Unix()))
	if err := e.disk.Put(ctx, name, body); err != nil {
		return SnapshotInfo{}, fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := e.disk.Put(ctx, path.Join(e.dir, latestSnapshotName), body); err != nil {
		return SnapshotInfo{}, fmt.Errorf("snapshot: write latest: %w", err)
	}

	if err := e.prune(ctx); err != nil {
		e.log.Warn("snapshot: prune failed", "error", err)
	}
	return SnapshotInfo{Path: name, URL: e.disk.URL(name), Count: len(products)}, nil
}

func (e *SnapshotExporter) prune(ctx context.Context) error {
	files, err := e.disk.Files(ctx, e.dir)
	if err != nil {
		return err
	}
	var stamped []string
	for _, f := range files {
		base := path.Base(f)
		if strings.HasPrefix(base, "products-") && strings.HasSuffix(base, ".json") {
			stamped = append(stamped, f)
		}
	}
	if len(stamped) <= e.keep {
		return nil
	}
	// names embed a fixed-width unix time, so lexical order is age order
	for _, f := range stamped[:len(stamped)-e.keep] {
		if err := e.disk.Delete(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
