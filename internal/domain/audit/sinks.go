// internal/domain/audit/sinks.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LogSink writes entries to the structured log
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a log sink
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(_ context.Context, entry Entry) error {
	s.log.WithFields(logrus.Fields{
		"audit_id": entry.ID,
		"actor":    entry.Actor,
		"module":   entry.Module,
		"action":   entry.Action,
		"ref_id":   entry.RefID,
		"details":  entry.Details,
	}).Info("audit")
	return nil
}

func (s *LogSink) Close() error { return nil }

// DatabaseSink appends entries to the audit_logs table
type DatabaseSink struct {
	db *gorm.DB
}

// NewDatabaseSink creates a database sink
func NewDatabaseSink(db *gorm.DB) *DatabaseSink {
	return &DatabaseSink{db: db}
}

func (s *DatabaseSink) Write(ctx context.Context, entry Entry) error {
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (s *DatabaseSink) Close() error { return nil }

// KafkaSink publishes entries as JSON, keyed by module and ref id
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a Kafka sink for the topic
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *KafkaSink) Write(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	key := entry.Module
	if entry.RefID != nil {
		key += ":" + strconv.FormatUint(uint64(*entry.RefID), 10)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "audit-action", Value: []byte(entry.Action)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: entry.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit entry to %s: %w", s.writer.Topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// MemorySink keeps entries in memory, for tests and the memory driver
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Record lets the sink double as a synchronous Recorder
func (s *MemorySink) Record(ctx context.Context, entry Entry) {
	_ = s.Write(ctx, entry)
}

// Entries returns a copy of everything written so far
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func (s *MemorySink) Close() error { return nil }
