// Package executor runs planned API calls with bounded concurrency and
// hands the responses to the archive writer. Individual call failures are
// logged and dropped so one broken endpoint never aborts a whole scan; the
// commit simply records what could be collected.
package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/archive"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/entity"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/meraki"
	"github.com/jasoncdavis/meraki-settings-to-git-and-differ/internal/planner"
)

// DefaultConcurrency caps in-flight API calls when the configuration does
// not say otherwise. The dashboard rate limit is per organization, so the
// cap stays conservative.
const DefaultConcurrency = 3

// Executor runs call plans against the API and archives the responses.
type Executor struct {
	client      meraki.Client
	writer      *archive.Writer
	concurrency int

	mu        sync.Mutex
	calls     int
	archived  int
	completed map[string]bool
	inventory entity.Inventory
}

// New creates an Executor. concurrency <= 0 falls back to
// DefaultConcurrency.
func New(client meraki.Client, writer *archive.Writer, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Executor{
		client:      client,
		writer:      writer,
		concurrency: concurrency,
		completed:   map[string]bool{},
	}
}

// Run executes one phase of calls. It only returns an error when the
// context is canceled; per-call API and write failures are logged and
// counted but never propagated.
func (e *Executor) Run(ctx context.Context, calls []planner.Call) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	for _, call := range calls {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.execute(ctx, call)
			return nil
		})
	}
	return group.Wait()
}

func (e *Executor) execute(ctx context.Context, call planner.Call) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	var payload []byte
	var err error
	if call.Paginated {
		payload, err = e.client.GetPaginated(ctx, call.Path, call.Query)
	} else {
		payload, err = e.client.Get(ctx, call.Path, call.Query)
	}
	if err != nil {
		slog.Error("API call failed", "operation", call.OperationID, "path", call.Path, "error", err)
		return
	}

	e.capture(call.OperationID, payload)

	written, err := e.writer.Write(call.Dir, call.FileName, payload)
	if err != nil {
		slog.Error("Failed to archive response", "operation", call.OperationID, "file", call.FileName, "error", err)
		return
	}

	e.mu.Lock()
	e.completed[call.OperationID] = true
	if written {
		e.archived++
	}
	e.mu.Unlock()
}

// capture parses the entity list responses the later planning phases need
// while the org-level phase is still running.
func (e *Executor) capture(operationID string, payload []byte) {
	switch operationID {
	case "getOrganizationNetworks":
		var networks []entity.Network
		if err := json.Unmarshal(payload, &networks); err != nil {
			slog.Error("Failed to parse network list", "error", err)
			return
		}
		e.mu.Lock()
		e.inventory.Networks = networks
		e.mu.Unlock()
	case "getOrganizationConfigTemplates":
		var templates []entity.Template
		if err := json.Unmarshal(payload, &templates); err != nil {
			slog.Error("Failed to parse template list", "error", err)
			return
		}
		e.mu.Lock()
		e.inventory.Templates = templates
		e.mu.Unlock()
	case "getOrganizationDevices":
		var devices []entity.Device
		if err := json.Unmarshal(payload, &devices); err != nil {
			slog.Error("Failed to parse device list", "error", err)
			return
		}
		e.mu.Lock()
		e.inventory.Devices = devices
		e.mu.Unlock()
	}
}

// Inventory returns the entity snapshot captured from the org-level phase.
func (e *Executor) Inventory() *entity.Inventory {
	e.mu.Lock()
	defer e.mu.Unlock()
	inv := e.inventory
	return &inv
}

// CallCount is the number of calls attempted so far across all phases.
func (e *Executor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ArchivedCount is the number of responses the writer persisted.
func (e *Executor) ArchivedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.archived
}

// Completed returns the set of operation ids that produced at least one
// successful call, used to report rule-table rows a scan never exercised.
func (e *Executor) Completed() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool, len(e.completed))
	for k, v := range e.completed {
		out[k] = v
	}
	return out
}
