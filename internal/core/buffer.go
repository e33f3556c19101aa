package core

import (
	"sort"
	"sync"
	"time"

	"github.com/sliink/relay/internal/model"
)

const defaultMaxQueueSize = 1000

// BufferManager queues routed records per output and applies backpressure.
// Penalized records stay queued until their penalty expires.
type BufferManager struct {
	buffers      map[string][]*model.Record
	maxQueueSize int
	status       map[string]model.BufferStatus
	rejected     map[string]int
	now          func() time.Time
	mutex        sync.RWMutex
	BaseComponent
}

// NewBufferManager creates a new buffer manager
func NewBufferManager(maxQueueSize int) *BufferManager {
	if maxQueueSize <= 0 {
		maxQueueSize = defaultMaxQueueSize
	}

	return &BufferManager{
		buffers:       make(map[string][]*model.Record),
		maxQueueSize:  maxQueueSize,
		status:        make(map[string]model.BufferStatus),
		rejected:      make(map[string]int),
		now:           time.Now,
		BaseComponent: NewBaseComponent("buffer_manager", "Buffer Manager"),
	}
}

// Initialize prepares the buffer manager for operation
func (b *BufferManager) Initialize() bool {
	b.SetStatus(model.StatusInitialized)
	return true
}

// Start begins buffer manager operation
func (b *BufferManager) Start() bool {
	b.SetStatus(model.StatusRunning)
	return true
}

// Stop drops every queued record
func (b *BufferManager) Stop() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.buffers = make(map[string][]*model.Record)
	b.status = make(map[string]model.BufferStatus)

	b.SetStatus(model.StatusStopped)
	return true
}

// SetMaxQueueSize changes the per-output capacity for future Buffer calls
func (b *BufferManager) SetMaxQueueSize(size int) {
	if size <= 0 {
		return
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.maxQueueSize = size
}

// Buffer queues a record for an output. It returns false when the buffer is
// full or the manager is not running.
func (b *BufferManager) Buffer(outputID string, record *model.Record) bool {
	if record == nil {
		return true
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.GetStatus() != model.StatusRunning {
		return false
	}

	if len(b.buffers[outputID]) >= b.maxQueueSize {
		b.rejected[outputID]++
		b.updateStatus(outputID)
		return false
	}

	b.buffers[outputID] = append(b.buffers[outputID], record)
	status := b.status[outputID]
	status.TotalBuffered++
	b.status[outputID] = status
	b.updateStatus(outputID)
	return true
}

// Flush removes and returns up to maxRecords records whose penalty has
// expired, in queue order. maxRecords <= 0 means no limit.
func (b *BufferManager) Flush(outputID string, maxRecords int) []*model.Record {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.GetStatus() != model.StatusRunning {
		return nil
	}

	queue := b.buffers[outputID]
	if len(queue) == 0 {
		return nil
	}

	now := b.now()
	var ready []*model.Record
	held := make([]*model.Record, 0, len(queue))
	for _, record := range queue {
		if record.IsPenalized(now) || (maxRecords > 0 && len(ready) >= maxRecords) {
			held = append(held, record)
			continue
		}
		ready = append(ready, record)
	}

	b.buffers[outputID] = held
	b.updateStatus(outputID)
	return ready
}

// updateStatus refreshes the status entry of one buffer; callers hold the
// write lock
func (b *BufferManager) updateStatus(outputID string) {
	now := b.now()
	queue := b.buffers[outputID]

	penalized := 0
	for _, record := range queue {
		if record.IsPenalized(now) {
			penalized++
		}
	}

	status := b.status[outputID]
	status.BufferID = outputID
	status.QueueSize = len(queue)
	status.PenalizedItems = penalized
	status.IsFull = len(queue) >= b.maxQueueSize
	status.LastUpdate = now
	b.status[outputID] = status
}

// GetBufferStatus retrieves the status of all buffers
func (b *BufferManager) GetBufferStatus() map[string]model.BufferStatus {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	result := make(map[string]model.BufferStatus, len(b.status))
	for k, v := range b.status {
		result[k] = v
	}
	return result
}

// Rejected returns the number of records refused per output because the
// buffer was full
func (b *BufferManager) Rejected() map[string]int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	result := make(map[string]int, len(b.rejected))
	for k, v := range b.rejected {
		result[k] = v
	}
	return result
}

// BufferIDs returns the ids of all buffers, sorted
func (b *BufferManager) BufferIDs() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	ids := make([]string, 0, len(b.buffers))
	for id := range b.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
