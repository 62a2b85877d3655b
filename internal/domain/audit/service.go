// internal/domain/audit/service.go
package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/pkg/logger"
)

// Service buffers entries and hands them to a sink on a background goroutine
type Service struct {
	sink    Sink
	entries chan Entry
	log     logrus.FieldLogger
	now     func() time.Time

	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewService creates and starts an audit service
func NewService(sink Sink, bufferSize int, log logrus.FieldLogger) *Service {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	s := &Service{
		sink:    sink,
		entries: make(chan Entry, bufferSize),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Record enqueues an entry; when the buffer is full the entry is dropped and logged
func (s *Service) Record(_ context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		s.log.WithField("action", entry.Action).Warn("audit service closed, entry dropped")
		return
	}

	select {
	case s.entries <- entry:
	default:
		s.dropped.Add(1)
		s.log.WithFields(logrus.Fields{
			"module": entry.Module,
			"action": entry.Action,
			"ref_id": entry.RefID,
		}).Warn("audit buffer full, entry dropped")
	}
}

// Dropped returns how many entries were discarded because the buffer was full
func (s *Service) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Service) run() {
	defer s.wg.Done()
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.sink.Write(ctx, entry); err != nil {
			logger.LogError(s.log, "audit", "run", "sink write failed", entry, err)
		}
		cancel()
	}
}

// Close drains pending entries and closes the sink
func (s *Service) Close(ctx context.Context) error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.entries)
	s.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("audit drain interrupted: %w", ctx.Err())
	}
	return s.sink.Close()
}
