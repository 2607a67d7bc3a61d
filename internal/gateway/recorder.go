package gateway

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/forgearmory/armory/internal/model"
)

const recorderBufferDefault = 256

// Recorder appends call records to the outcome sink without ever blocking the
// request path. Records are handed off to a background writer through a
// buffered channel; when the buffer is full or the sink is unavailable, the
// record is dropped and the failure logged. Metrics durability is best-effort,
// protocol correctness is not.
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger

	ch      chan *model.ToolCall
	quit    chan struct{}
	done    chan struct{}
	closing atomic.Bool
	closed  sync.Once
}

// NewRecorder starts a call recorder writing to db.
// bufferSize <= 0 selects the default.
func NewRecorder(db *gorm.DB, logger *zap.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = recorderBufferDefault
	}
	r := &Recorder{
		db:     db,
		logger: logger,
		ch:     make(chan *model.ToolCall, bufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record hands a fully-formed call record to the background writer.
// It never blocks: if the recorder is closed or the buffer is full, the
// record is dropped. The channel itself is never closed, so a call racing
// Close cannot panic on the send.
func (r *Recorder) Record(call *model.ToolCall) {
	if r.closing.Load() {
		r.logger.Warn("call record dropped, recorder is closed",
			zap.String("backend", call.BackendName),
			zap.String("tool", call.ToolName),
		)
		return
	}
	select {
	case r.ch <- call:
	default:
		r.logger.Warn("call record dropped, recorder buffer full",
			zap.String("backend", call.BackendName),
			zap.String("tool", call.ToolName),
		)
	}
}

// Close flushes buffered records and stops the writer.
func (r *Recorder) Close() {
	r.closed.Do(func() {
		r.closing.Store(true)
		close(r.quit)
		<-r.done
	})
}

func (r *Recorder) drain() {
	defer close(r.done)
	for {
		select {
		case call := <-r.ch:
			r.persist(call)
		case <-r.quit:
			for {
				select {
				case call := <-r.ch:
					r.persist(call)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(call *model.ToolCall) {
	if err := r.db.Create(call).Error; err != nil {
		r.logger.Error("failed to persist call record",
			zap.String("backend", call.BackendName),
			zap.String("tool", call.ToolName),
			zap.Error(err),
		)
	}
}
