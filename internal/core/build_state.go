package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// BuildStatus is a snapshot of full rebuild progress
type BuildStatus struct {
	Timestamp              time.Time     `json:"timestamp"`
	IsBuilding             bool          `json:"isBuilding"`
	Progress               float64       `json:"progress"`
	FilesProcessed         int64         `json:"filesProcessed"`
	TotalFiles             int64         `json:"totalFiles"`
	BytesProcessed         int64         `json:"bytesProcessed"`
	LastUpdate             time.Time     `json:"lastUpdate"`
	UpdateCount            int64         `json:"updateCount"`
	HasError               bool          `json:"hasError"`
	ErrorMessage           string        `json:"errorMessage,omitempty"`
	EstimatedTimeRemaining time.Duration `json:"estimatedTimeRemaining"`
}

// BuildState tracks the progress of full rebuilds. Counters are atomic so
// status queries never wait on the index lock.
type BuildState struct {
	isBuilding     int32 // 0 = idle, 1 = rebuilding
	lastUpdate     int64 // unix nanoseconds of the last completed build
	updateCount    int64
	startTime      int64
	filesProcessed int64
	totalFiles     int64
	bytesProcessed int64

	errMu     sync.RWMutex
	lastError error
}

// NewBuildState creates an idle BuildState
func NewBuildState() *BuildState {
	return &BuildState{}
}

// IsBuilding reports whether a rebuild is running
func (bs *BuildState) IsBuilding() bool {
	return atomic.LoadInt32(&bs.isBuilding) == 1
}

// Start begins tracking a rebuild over totalFiles files
func (bs *BuildState) Start(totalFiles int) {
	atomic.StoreInt64(&bs.startTime, time.Now().UnixNano())
	atomic.StoreInt64(&bs.filesProcessed, 0)
	atomic.StoreInt64(&bs.bytesProcessed, 0)
	atomic.StoreInt64(&bs.totalFiles, int64(totalFiles))
	atomic.StoreInt32(&bs.isBuilding, 1)
	bs.setError(nil)
}

// FileDone records one processed file of size bytes
func (bs *BuildState) FileDone(bytes int) {
	atomic.AddInt64(&bs.filesProcessed, 1)
	atomic.AddInt64(&bs.bytesProcessed, int64(bytes))
}

// Finish ends the rebuild. A non-nil err (cancellation included) is kept
// for status reports.
func (bs *BuildState) Finish(err error) {
	bs.setError(err)
	atomic.StoreInt64(&bs.lastUpdate, time.Now().UnixNano())
	atomic.AddInt64(&bs.updateCount, 1)
	atomic.StoreInt32(&bs.isBuilding, 0)
}

func (bs *BuildState) setError(err error) {
	bs.errMu.Lock()
	defer bs.errMu.Unlock()
	bs.lastError = err
}

// LastError returns the error of the last finished rebuild
func (bs *BuildState) LastError() error {
	bs.errMu.RLock()
	defer bs.errMu.RUnlock()
	return bs.lastError
}

// Progress returns the processed percentage of the current rebuild
func (bs *BuildState) Progress() float64 {
	total := atomic.LoadInt64(&bs.totalFiles)
	if total <= 0 {
		if bs.IsBuilding() {
			return 0
		}
		return 100
	}
	p := float64(atomic.LoadInt64(&bs.filesProcessed)) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// EstimatedTimeRemaining extrapolates from the elapsed time and progress
func (bs *BuildState) EstimatedTimeRemaining() time.Duration {
	if !bs.IsBuilding() {
		return 0
	}
	progress := bs.Progress()
	if progress <= 0 || progress >= 100 {
		return 0
	}
	elapsed := time.Since(time.Unix(0, atomic.LoadInt64(&bs.startTime)))
	return time.Duration(float64(elapsed) * (100.0 - progress) / progress)
}

// Snapshot captures the current status
func (bs *BuildState) Snapshot() BuildStatus {
	status := BuildStatus{
		Timestamp:              time.Now(),
		IsBuilding:             bs.IsBuilding(),
		Progress:               bs.Progress(),
		FilesProcessed:         atomic.LoadInt64(&bs.filesProcessed),
		TotalFiles:             atomic.LoadInt64(&bs.totalFiles),
		BytesProcessed:         atomic.LoadInt64(&bs.bytesProcessed),
		UpdateCount:            atomic.LoadInt64(&bs.updateCount),
		EstimatedTimeRemaining: bs.EstimatedTimeRemaining(),
	}
	if last := atomic.LoadInt64(&bs.lastUpdate); last > 0 {
		status.LastUpdate = time.Unix(0, last)
	}
	if err := bs.LastError(); err != nil {
		status.HasError = true
		status.ErrorMessage = err.Error()
	}
	return status
}
