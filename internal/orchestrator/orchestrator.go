package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/logger"
	"github.com/google/uuid"
)

const (
	DefaultMaxConcurrent = 3
	DefaultPollInterval  = 2 * time.Second
	DefaultTickInterval  = time.Second
)

// VendorClient is the adapter surface the orchestrator drives.
type VendorClient interface {
	Submit(ctx context.Context, req evolink.GenerationRequest) (evolink.CreateResult, error)
	FetchStatus(ctx context.Context, taskID string) (evolink.StatusResult, error)
}

type Options struct {
	Client        VendorClient
	Store         TaskStore
	MaxConcurrent int
	PollInterval  time.Duration
	TickInterval  time.Duration
}

// Orchestrator owns the task collection and all timers. Every mutation runs
// under one mutex, preserving the single-writer guarantee the lifecycle
// invariants depend on; consumers only receive value snapshots.
type Orchestrator struct {
	mu      sync.Mutex
	tasks   []*Task
	cancels map[string]context.CancelFunc

	client        VendorClient
	store         TaskStore
	maxConcurrent int
	pollInterval  time.Duration
	tickInterval  time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc
	logger     *logger.CustomLogger
}

func New(opts Options) *Orchestrator {
	if opts.Client == nil {
		panic("orchestrator: vendor client is required")
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryTaskStore()
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cancels:       make(map[string]context.CancelFunc),
		client:        opts.Client,
		store:         store,
		maxConcurrent: maxConcurrent,
		pollInterval:  pollInterval,
		tickInterval:  tickInterval,
		baseCtx:       ctx,
		baseCancel:    cancel,
		logger:        logger.NewCustomLogger().With("component", "orchestrator"),
	}
}

// Restore loads the persisted task set, repairs in-flight entries and
// resumes polling for tasks that still hold a vendor task id.
func (o *Orchestrator) Restore() error {
	stored, err := o.store.Load()
	if err != nil {
		return err
	}
	now := time.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.tasks) > 0 {
		return nil
	}
	cutoff := now.Add(-MaxTaskAge).UnixMilli()
	for _, candidate := range stored {
		task, ok := normalizeStoredTask(candidate)
		if !ok {
			continue
		}
		if task.CreatedAt < cutoff {
			continue
		}
		copied := task
		o.tasks = append(o.tasks, &copied)
		if len(o.tasks) >= MaxStoredTasks {
			break
		}
	}
	for _, task := range o.tasks {
		if task.Status == StatusPolling && task.VendorTaskID != "" {
			o.startRunnerLocked(task.ClientID, true)
		}
	}
	o.admitLocked()
	o.persistLocked()
	return nil
}

// Submit enqueues a generation request and returns the client id of the new
// task. Never blocks on vendor calls; admission control decides when the
// create call actually happens.
func (o *Orchestrator) Submit(req evolink.GenerationRequest) string {
	task := &Task{
		ClientID:  uuid.New().String(),
		Request:   req,
		CreatedAt: time.Now().UnixMilli(),
		Status:    StatusQueued,
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	// most-recent-first; admission scans from the tail, so submission order
	// is preserved
	o.tasks = append([]*Task{task}, o.tasks...)
	o.persistLocked()
	o.admitLocked()
	return task.ClientID
}

// GetTask returns a snapshot of one task.
func (o *Orchestrator) GetTask(clientID string) (Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if task := o.findLocked(clientID); task != nil {
		return *task, true
	}
	return Task{}, false
}

// Tasks returns snapshots of the whole collection, most recent first.
func (o *Orchestrator) Tasks() []Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Task, 0, len(o.tasks))
	for _, task := range o.tasks {
		out = append(out, *task)
	}
	return out
}

// CancelQueue drops all queued tasks and halts client-side work on active
// ones. No vendor-side cancel is issued; an in-flight generation keeps
// running on the vendor until it finishes there.
func (o *Orchestrator) CancelQueue() {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.tasks[:0]
	for _, task := range o.tasks {
		if task.Status == StatusQueued {
			continue
		}
		kept = append(kept, task)
	}
	o.tasks = kept
	for clientID, cancel := range o.cancels {
		cancel()
		delete(o.cancels, clientID)
	}
	o.persistLocked()
}

// ResetAll clears every task and timer, including terminal history.
func (o *Orchestrator) ResetAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for clientID, cancel := range o.cancels {
		cancel()
		delete(o.cancels, clientID)
	}
	o.tasks = nil
	if err := o.store.Clear(); err != nil {
		o.logger.Warnf("failed to clear task store: %s", err)
	}
}

// Close stops all background work; tasks stay persisted for the next start.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for clientID, cancel := range o.cancels {
		cancel()
		delete(o.cancels, clientID)
	}
	o.mu.Unlock()
	o.baseCancel()
}

func (o *Orchestrator) findLocked(clientID string) *Task {
	for _, task := range o.tasks {
		if task.ClientID == clientID {
			return task
		}
	}
	return nil
}

func (o *Orchestrator) activeCountLocked() int {
	count := 0
	for _, task := range o.tasks {
		if task.Status.Active() {
			count++
		}
	}
	return count
}

// admitLocked fills free concurrency slots with queued tasks, scanning from
// the tail of the most-recent-first list so older submissions go first.
func (o *Orchestrator) admitLocked() {
	for o.activeCountLocked() < o.maxConcurrent {
		var next *Task
		for index := len(o.tasks) - 1; index >= 0; index-- {
			if o.tasks[index].Status == StatusQueued {
				next = o.tasks[index]
				break
			}
		}
		if next == nil {
			return
		}
		next.Status = StatusCreating
		next.ErrorMessage = ""
		o.startRunnerLocked(next.ClientID, false)
		o.persistLocked()
	}
}

func (o *Orchestrator) startRunnerLocked(clientID string, resume bool) {
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.cancels[clientID] = cancel
	go o.runTask(ctx, clientID, resume)
}

// runTask drives one task from create through its poll loop. Exactly one
// runner exists per active task, so polls never overlap for the same task.
func (o *Orchestrator) runTask(ctx context.Context, clientID string, resume bool) {
	go o.tickElapsed(ctx, clientID)

	var vendorTaskID string
	if resume {
		o.mu.Lock()
		if task := o.findLocked(clientID); task != nil {
			vendorTaskID = task.VendorTaskID
		}
		o.mu.Unlock()
		if vendorTaskID == "" {
			o.failTask(clientID, "lost vendor task id")
			return
		}
	} else {
		o.mu.Lock()
		task := o.findLocked(clientID)
		if task == nil {
			o.mu.Unlock()
			return
		}
		req := task.Request
		o.mu.Unlock()

		result, err := o.client.Submit(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.failTask(clientID, err.Error())
			return
		}
		vendorTaskID = result.TaskID
		o.beginPolling(clientID, result)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.pollInterval):
		}
		status, err := o.client.FetchStatus(ctx, vendorTaskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.failTask(clientID, err.Error())
			return
		}
		o.updateProgress(clientID, status.Progress)
		switch {
		case status.Resolved():
			o.completeTask(clientID, status.ResultURL)
			return
		case status.Failed():
			o.failTask(clientID, "generation failed on the vendor side")
			return
		}
		// completed without an extractable result URL is NOT terminal
		// success; keep polling until a URL appears
	}
}

// tickElapsed increments the wall-clock counter every tick while the task is
// creating or polling. Terminal tasks keep their final value.
func (o *Orchestrator) tickElapsed(ctx context.Context, clientID string) {
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		o.mu.Lock()
		task := o.findLocked(clientID)
		if task == nil || !task.Status.Active() {
			o.mu.Unlock()
			return
		}
		task.ElapsedSeconds++
		o.persistLocked()
		o.mu.Unlock()
	}
}

// beginPolling records the accepted create call: the task transitions to
// polling and holds its vendor task id until a terminal transition clears it.
func (o *Orchestrator) beginPolling(clientID string, result evolink.CreateResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	task := o.findLocked(clientID)
	if task == nil || task.Status.Terminal() {
		return
	}
	task.Status = StatusPolling
	task.VendorTaskID = result.TaskID
	task.EstimatedTime = result.EstimatedTime
	if result.Progress > task.Progress {
		task.Progress = result.Progress
	}
	o.persistLocked()
}

func (o *Orchestrator) updateProgress(clientID string, progress int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	task := o.findLocked(clientID)
	if task == nil || task.Status != StatusPolling {
		return
	}
	if progress > 0 {
		task.Progress = progress
	}
	o.persistLocked()
}

func (o *Orchestrator) completeTask(clientID, resultURL string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	task := o.findLocked(clientID)
	if task == nil || task.Status.Terminal() {
		return
	}
	task.Status = StatusCompleted
	task.Progress = 100
	task.ResultURL = resultURL
	task.ErrorMessage = ""
	task.VendorTaskID = ""
	o.releaseLocked(clientID)
	o.logger.Infof("task %s completed", clientID)
	o.persistLocked()
	o.admitLocked()
}

func (o *Orchestrator) failTask(clientID, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	task := o.findLocked(clientID)
	if task == nil || task.Status.Terminal() {
		return
	}
	task.Status = StatusFailed
	task.ErrorMessage = message
	task.ResultURL = ""
	task.VendorTaskID = ""
	o.releaseLocked(clientID)
	o.logger.Warnf("task %s failed: %s", clientID, message)
	o.persistLocked()
	o.admitLocked()
}

func (o *Orchestrator) releaseLocked(clientID string) {
	if cancel, ok := o.cancels[clientID]; ok {
		cancel()
		delete(o.cancels, clientID)
	}
}

func (o *Orchestrator) persistLocked() {
	snapshot := make([]Task, 0, len(o.tasks))
	for _, task := range o.tasks {
		snapshot = append(snapshot, *task)
	}
	if err := o.store.Save(snapshot); err != nil {
		o.logger.Warnf("failed to persist tasks: %s", err)
	}
}
