package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"taleweaver/internal/logging"
)

// CredentialWatcher watches the workspace .env file and re-resolves the
// API key when it changes, so a key pasted into the file mid-session is
// picked up without a restart. The workspace directory is watched rather
// than the file itself, since most editors replace files via rename.
type CredentialWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	workspace   string
	onChange    func(key string, source KeySource)
	pendingAt   time.Time
	pending     bool
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewCredentialWatcher creates a watcher for the workspace .env file.
// onChange is invoked with the freshly resolved key after edits settle.
func NewCredentialWatcher(workspace string, onChange func(key string, source KeySource)) (*CredentialWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &CredentialWatcher{
		watcher:     watcher,
		workspace:   workspace,
		onChange:    onChange,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (cw *CredentialWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	if err := cw.watcher.Add(cw.workspace); err != nil {
		logging.ConfigWarn("CredentialWatcher: cannot watch %s: %v", cw.workspace, err)
	} else {
		logging.Config("CredentialWatcher: watching %s for %s changes", cw.workspace, envFileName)
	}

	go cw.run(ctx)

	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (cw *CredentialWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh

	if err := cw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("CredentialWatcher: error closing watcher: %v", err)
	}
}

func (cw *CredentialWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("CredentialWatcher error: %v", err)

		case <-ticker.C:
			cw.fireSettled()
		}
	}
}

func (cw *CredentialWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != envFileName {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	logging.ConfigDebug("CredentialWatcher: %s changed (%s)", envFileName, event.Op)

	cw.mu.Lock()
	cw.pending = true
	cw.pendingAt = time.Now()
	cw.mu.Unlock()
}

// fireSettled invokes the callback once edits have stopped for the
// debounce window, collapsing editor save bursts into one reload.
func (cw *CredentialWatcher) fireSettled() {
	cw.mu.Lock()
	if !cw.pending || time.Since(cw.pendingAt) < cw.debounceDur {
		cw.mu.Unlock()
		return
	}
	cw.pending = false
	cw.mu.Unlock()

	key, source := ResolveAPIKey(cw.workspace)
	if key == "" {
		logging.ConfigWarn("CredentialWatcher: %s changed but no usable key found", envFileName)
		return
	}

	logging.Config("CredentialWatcher: key reloaded from %s", source)
	if cw.onChange != nil {
		cw.onChange(key, source)
	}
}
