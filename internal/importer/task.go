package importer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rishavrajjain/recipewallet/internal/logger"
	"github.com/rishavrajjain/recipewallet/internal/wallet"
)

// State is the import task lifecycle state.
type State int

const (
	StateIdle State = iota
	StateImporting
	StateCompleted
	StateFailed
	StateCancelled
)

// String returns the snake_case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImporting:
		return "importing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrImportInFlight is returned by StartImport while another import is still
// running. Duplicate requests are rejected, never queued.
var ErrImportInFlight = errors.New("an import is already in progress")

// Result is delivered to the manager's callback when an import finishes.
// Exactly one of Recipe or Err is meaningful.
type Result struct {
	Recipe wallet.Recipe
	Err    error
}

// LinkImporter is the slice of Client the task manager needs. It exists so
// the manager's cancellation and single-flight contract can be exercised
// without a live extraction service.
type LinkImporter interface {
	ImportFromLink(ctx context.Context, link string) (wallet.Recipe, error)
}

// TaskManager owns the single in-flight import. It enforces single-flight,
// carries the user-supplied override name, and suppresses results that
// arrive after cancellation by comparing generation tokens.
type TaskManager struct {
	client LinkImporter
	log    *logger.Logger

	// onResult receives the terminal outcome of each import that was not
	// cancelled. It is called from the import goroutine with the manager's
	// lock released.
	onResult func(Result)

	mu          sync.Mutex
	state       State
	generation  uint64
	pendingName string
	cancel      context.CancelFunc
	lastError   string
}

// NewTaskManager creates a task manager that runs imports through client and
// reports outcomes to onResult.
func NewTaskManager(client LinkImporter, log *logger.Logger, onResult func(Result)) *TaskManager {
	return &TaskManager{
		client:   client,
		log:      log,
		onResult: onResult,
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (m *TaskManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PendingName returns the trimmed override name shown while an import is in
// flight, or empty when idle.
func (m *TaskManager) PendingName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingName
}

// LastError returns the user-facing message of the most recent failure, or
// empty if the last import succeeded or was cancelled.
func (m *TaskManager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// StartImport begins a cancellable import of the link. customName, trimmed,
// becomes the loading label immediately and overrides the extracted title on
// success when non-empty. A second call while one import is in flight
// returns ErrImportInFlight.
func (m *TaskManager) StartImport(ctx context.Context, link, customName string) error {
	m.mu.Lock()
	if m.state == StateImporting {
		m.mu.Unlock()
		return ErrImportInFlight
	}

	m.generation++
	gen := m.generation
	m.state = StateImporting
	m.pendingName = strings.TrimSpace(customName)
	m.lastError = ""

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	name := m.pendingName
	m.mu.Unlock()

	go m.run(runCtx, gen, link, name)
	return nil
}

// run performs the network call and applies the outcome if this generation
// is still current.
func (m *TaskManager) run(ctx context.Context, gen uint64, link, customName string) {
	recipe, err := m.client.ImportFromLink(ctx, link)

	m.mu.Lock()
	if gen != m.generation || m.state != StateImporting {
		// Cancelled or superseded: the result is discarded unseen.
		m.mu.Unlock()
		m.log.Debug("importer: discarding stale result for %s", link)
		return
	}

	if err != nil {
		m.state = StateFailed
		m.lastError = userMessage(err)
		m.pendingName = ""
		m.cancel = nil
		m.mu.Unlock()
		m.log.Info("importer: import of %s failed: %v", link, err)
		m.onResult(Result{Err: err})
		m.settle(gen)
		return
	}

	if customName != "" {
		recipe.Name = customName
	}
	m.state = StateCompleted
	m.pendingName = ""
	m.cancel = nil
	m.mu.Unlock()
	m.log.Info("importer: imported %q from %s", recipe.Name, link)
	m.onResult(Result{Recipe: recipe})
	m.settle(gen)
}

// settle returns the manager to Idle after a terminal transition so the next
// StartImport is accepted immediately.
func (m *TaskManager) settle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation && m.state != StateImporting {
		m.state = StateIdle
	}
}

// CancelImport cancels the in-flight import, if any. The manager resets to
// Idle immediately; no error is surfaced and any result the already-running
// call produces later is a no-op.
func (m *TaskManager) CancelImport() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateImporting {
		return
	}

	// Bump the generation so the in-flight goroutine's result no longer
	// matches and gets dropped.
	m.generation++
	m.state = StateIdle
	m.pendingName = ""
	m.lastError = ""
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.log.Debug("importer: import cancelled")
}

// userMessage maps a typed import failure onto the message shown to the
// user. Server-explained failures surface verbatim; everything else gets a
// generic connectivity message.
func userMessage(err error) string {
	var se *ServerError
	switch {
	case errors.As(err, &se):
		return se.Message
	case errors.Is(err, ErrEmptyRecipe):
		return "No recipe could be extracted from that link."
	case errors.Is(err, context.DeadlineExceeded):
		return "The recipe service took too long to respond. Try again."
	default:
		return "Could not reach the recipe service. Check your connection."
	}
}
