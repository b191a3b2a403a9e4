// Package logging persists structured log records and replays them to subscribers.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/db"
	"github.com/alkoleft/naparnik-mcp/internal/pubsub"
	"github.com/google/uuid"
)

// Log represents a log entry in the system
type Log struct {
	ID         string
	SessionID  string
	Timestamp  int64
	Level      string
	Message    string
	Attributes map[string]string
	CreatedAt  int64
}

const (
	EventLogCreated pubsub.EventType = "log_created"
)

type Service interface {
	pubsub.Subscriber[Log]

	Create(ctx context.Context, log Log) error
	ListBySession(ctx context.Context, sessionID string) ([]Log, error)
	ListAll(ctx context.Context, limit int) ([]Log, error)
	Shutdown()
}

type service struct {
	*pubsub.Broker[Log]
	q db.Querier
}

func NewService(q db.Querier) Service {
	return &service{
		Broker: pubsub.NewBroker[Log](),
		q:      q,
	}
}

// Create stores the entry, filling in the id and timestamps when unset, and
// publishes it to subscribers.
func (s *service) Create(ctx context.Context, log Log) error {
	now := time.Now().UnixMilli()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp == 0 {
		log.Timestamp = now
	}
	if log.CreatedAt == 0 {
		log.CreatedAt = now
	}
	if log.Level == "" {
		log.Level = "info"
	}

	var attributesJSON sql.NullString
	if len(log.Attributes) > 0 {
		attributesBytes, err := json.Marshal(log.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal log attributes: %w", err)
		}
		attributesJSON = sql.NullString{String: string(attributesBytes), Valid: true}
	}

	err := s.q.CreateLog(ctx, db.CreateLogParams{
		ID:         log.ID,
		SessionID:  sql.NullString{String: log.SessionID, Valid: log.SessionID != ""},
		Timestamp:  log.Timestamp,
		Level:      log.Level,
		Message:    log.Message,
		Attributes: attributesJSON,
		CreatedAt:  log.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("db.CreateLog: %w", err)
	}

	s.Publish(EventLogCreated, log)
	return nil
}

func (s *service) ListBySession(ctx context.Context, sessionID string) ([]Log, error) {
	dbLogs, err := s.q.ListLogsBySession(ctx, sql.NullString{String: sessionID, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("db.ListLogsBySession: %w", err)
	}
	return fromDBItems(dbLogs), nil
}

// ListAll returns the newest entries first.
func (s *service) ListAll(ctx context.Context, limit int) ([]Log, error) {
	dbLogs, err := s.q.ListAllLogs(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("db.ListAllLogs: %w", err)
	}
	return fromDBItems(dbLogs), nil
}

func fromDBItems(items []db.Log) []Log {
	logs := make([]Log, len(items))
	for i, item := range items {
		logs[i] = fromDBItem(item)
	}
	return logs
}

func fromDBItem(item db.Log) Log {
	log := Log{
		ID:         item.ID,
		SessionID:  item.SessionID.String,
		Timestamp:  item.Timestamp,
		Level:      item.Level,
		Message:    item.Message,
		CreatedAt:  item.CreatedAt,
		Attributes: make(map[string]string),
	}

	if item.Attributes.Valid && item.Attributes.String != "" {
		if err := json.Unmarshal([]byte(item.Attributes.String), &log.Attributes); err != nil {
			slog.Error("Failed to unmarshal log attributes", "log_id", item.ID, "error", err)
			log.Attributes = make(map[string]string)
		}
	}
	return log
}
