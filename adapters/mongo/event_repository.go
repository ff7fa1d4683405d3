package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

type EventRepository struct {
	collection *mongo.Collection
}

// NewEventRepository creates a MongoDB generation event repository.
func NewEventRepository(db *mongo.Database) repositories.EventRepository {
	return &EventRepository{
		collection: db.Collection("generation_events"),
	}
}

type eventDocument struct {
	RecordingID string    `bson:"recording_id"`
	OutputID    string    `bson:"output_id,omitempty"`
	Kind        string    `bson:"kind,omitempty"`
	Status      string    `bson:"status"`
	Timestamp   time.Time `bson:"timestamp"`
}

// SaveEvent implements repositories.EventRepository
func (r *EventRepository) SaveEvent(ctx context.Context, event entities.GenerationEvent) error {
	doc := eventDocument{
		RecordingID: event.RecordingID.String(),
		Kind:        string(event.Kind),
		Status:      string(event.Status),
		Timestamp:   event.Timestamp,
	}
	if event.OutputID != uuid.Nil {
		doc.OutputID = event.OutputID.String()
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save generation event: %w", err)
	}
	return nil
}

// ListByRecording implements repositories.EventRepository
func (r *EventRepository) ListByRecording(ctx context.Context, recordingID string, limit int) ([]entities.GenerationEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	filter := bson.M{"recording_id": recordingID}
	opts := options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for recording %s: %w", recordingID, err)
	}
	defer cursor.Close(ctx)

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events for recording %s: %w", recordingID, err)
	}

	events := make([]entities.GenerationEvent, 0, len(docs))
	for _, doc := range docs {
		event := entities.GenerationEvent{
			Kind:      entities.OutputKind(doc.Kind),
			Status:    entities.OutputStatus(doc.Status),
			Timestamp: doc.Timestamp,
		}
		// Malformed ids mean a hand-edited document; keep the event with
		// zero ids rather than dropping history.
		if id, err := uuid.Parse(doc.RecordingID); err == nil {
			event.RecordingID = id
		}
		if doc.OutputID != "" {
			if id, err := uuid.Parse(doc.OutputID); err == nil {
				event.OutputID = id
			}
		}
		events = append(events, event)
	}
	return events, nil
}
