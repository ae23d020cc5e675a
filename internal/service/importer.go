package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"awful/internal/blocks"
	"awful/internal/domain"
	"awful/internal/tenant"
)

const (
	resultSuffix   = ".result.json"
	importDebounce = 500 * time.Millisecond
)

// ImportEnvelope is the content of a dropped file.
type ImportEnvelope struct {
	Owner  domain.OwnerRef            `json:"owner"`
	Fields []string                   `json:"fields,omitempty"`
	Blocks map[string]blocks.Incoming `json:"blocks"`
}

// ImportResult is written next to each processed file.
type ImportResult struct {
	File   string           `json:"file"`
	Owner  *domain.OwnerRef `json:"owner,omitempty"`
	Saved  bool             `json:"saved"`
	Errors blocks.Errors    `json:"errors,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Importer submits JSON envelopes dropped into a directory.
type Importer struct {
	blocks  *BlockService
	emitter EventEmitter
	dir     string
	tenant  tenant.ID
	logger  zerolog.Logger

	running runningJobsGuard

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
}

// NewImporter creates an Importer for dir. Envelopes are submitted to
// tenant t.
func NewImporter(svc *BlockService, emitter EventEmitter, dir string, t tenant.ID, logger zerolog.Logger) *Importer {
	return &Importer{
		blocks:  svc,
		emitter: emitter,
		dir:     dir,
		tenant:  t,
		logger:  logger.With().Str("component", "importer").Str("dir", dir).Logger(),
	}
}

func isEnvelope(path string) bool {
	return strings.HasSuffix(path, ".json") && !strings.HasSuffix(path, resultSuffix)
}

func resultPath(path string) string {
	return strings.TrimSuffix(path, ".json") + resultSuffix
}

// ProcessFile submits one envelope and writes its result file. The
// returned error is for failures to read the envelope or write the result;
// submission problems are reported in the result.
func (im *Importer) ProcessFile(ctx context.Context, path string) (ImportResult, error) {
	if !im.running.TryLock(path) {
		return ImportResult{}, fmt.Errorf("%s is already being imported", path)
	}
	defer im.running.Unlock(path)

	result := ImportResult{File: filepath.Base(path)}
	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("read envelope: %w", err)
	}
	if err := im.submit(ctx, data, &result); err != nil {
		result.Error = err.Error()
		im.logger.Warn().Err(err).Str("file", result.File).Msg("import failed")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return result, fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(resultPath(path), out, 0644); err != nil {
		return result, fmt.Errorf("write result: %w", err)
	}
	im.emitter.Emit(ctx, EventImportCompleted, result)
	return result, nil
}

func (im *Importer) submit(ctx context.Context, data []byte, result *ImportResult) error {
	var env ImportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Owner.Kind.Valid() {
		result.Owner = &env.Owner
	}
	if len(env.Blocks) == 0 {
		return errors.New("envelope has no blocks")
	}
	owner, err := im.blocks.OwnerFor(im.tenant, env.Owner)
	if err != nil {
		return err
	}
	errs, err := im.blocks.Submit(ctx, owner, env.Blocks, env.Fields)
	if err != nil {
		return err
	}
	result.Errors = errs
	result.Saved = errs == nil
	return nil
}

// ProcessPending imports every envelope in the directory that has no
// result file yet.
func (im *Importer) ProcessPending(ctx context.Context) error {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		return fmt.Errorf("read import dir: %w", err)
	}
	for _, e := range entries {
		path := filepath.Join(im.dir, e.Name())
		if e.IsDir() || !isEnvelope(path) {
			continue
		}
		if _, err := os.Stat(resultPath(path)); err == nil {
			continue
		}
		if _, err := im.ProcessFile(ctx, path); err != nil {
			im.logger.Error().Err(err).Str("file", e.Name()).Msg("import failed")
		}
	}
	return nil
}

// Start imports pending envelopes and then watches the directory for new
// ones until Stop.
func (im *Importer) Start(ctx context.Context) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.watcher != nil {
		return errors.New("importer already started")
	}
	if err := os.MkdirAll(im.dir, 0755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(im.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", im.dir, err)
	}
	if err := im.ProcessPending(ctx); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	im.watcher = watcher
	im.watchCancel = cancel
	go im.watch(watchCtx, watcher)
	im.logger.Info().Msg("importer watching")
	return nil
}

func (im *Importer) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isEnvelope(event.Name) {
				continue
			}
			path := event.Name
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			// editors and copies write in several steps
			timers[path] = time.AfterFunc(importDebounce, func() {
				if _, err := im.ProcessFile(ctx, path); err != nil {
					im.logger.Error().Err(err).Str("file", filepath.Base(path)).Msg("import failed")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			im.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

// Stop tears down the watcher and waits for imports in flight until ctx
// ends.
func (im *Importer) Stop(ctx context.Context) {
	im.mu.Lock()
	if im.watchCancel != nil {
		im.watchCancel()
		im.watchCancel = nil
	}
	if im.watcher != nil {
		im.watcher.Close()
		im.watcher = nil
	}
	im.mu.Unlock()
	im.running.WaitAll(ctx)
}
