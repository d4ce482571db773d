// Package statsink is an off-tick-path, fire-and-forget sink for
// aggregate match statistics (spec.md §5 "aggregate statistics ...
// updated per room and aggregated off the tick path"). It never gates
// gameplay: a room posts a summary and moves on regardless of whether the
// write ever lands.
package statsink

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MatchSummary is one room's final tally, posted once on gameOver.
type MatchSummary struct {
	RoomCode      string    `bson:"roomCode"`
	StartedAt     time.Time `bson:"startedAt"`
	EndedAt       time.Time `bson:"endedAt"`
	DurationMs    int64     `bson:"durationMs"`
	Winner        string    `bson:"winner"`
	FinalScore    int       `bson:"finalScore"`
	CaptureCount  int       `bson:"captureCount"`
	DotsRemaining int       `bson:"dotsRemaining"`
	StepCount     int       `bson:"stepCount"`
}

const (
	batchSize     = 20
	flushInterval = 5 * time.Second
	queueCapacity = 512
)

// Sink batches MatchSummary values and flushes them with InsertMany, on a
// goroutine of its own so a slow or unreachable Mongo instance never backs
// up onto a room's tick loop.
type Sink struct {
	collection *mongo.Collection
	logger     *log.Logger
	queue      chan MatchSummary
	done       chan struct{}
}

// Connect dials MongoDB the same way clairegregg's central_server does
// (mongo.Connect against a URI built from configuration), then returns a
// Sink writing into database.collection.
func Connect(ctx context.Context, uri, database, collection string, logger *log.Logger) (*Sink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	s := &Sink{
		collection: client.Database(database).Collection(collection),
		logger:     logger,
		queue:      make(chan MatchSummary, queueCapacity),
		done:       make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Post enqueues a summary without blocking the caller. A full queue drops
// the summary and logs a warning — this sink is observability, not a
// durability guarantee (spec.md §7 transient integration fault).
func (s *Sink) Post(summary MatchSummary) {
	select {
	case s.queue <- summary:
	default:
		if s.logger != nil {
			s.logger.Warn("statsink queue full, dropping match summary", "room", summary.RoomCode)
		}
	}
}

func (s *Sink) run() {
	defer close(s.done)
	batch := make([]MatchSummary, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.insertMany(batch)
		batch = batch[:0]
	}

	for {
		select {
		case summary, ok := <-s.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, summary)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Sink) insertMany(batch []MatchSummary) {
	docs := make([]interface{}, len(batch))
	for i, b := range batch {
		docs[i] = b
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.collection.InsertMany(ctx, docs); err != nil && s.logger != nil {
		s.logger.Warn("statsink insert failed", "count", len(batch), "err", err)
	}
}

// Close flushes any queued summaries and stops the background writer.
func (s *Sink) Close() {
	close(s.queue)
	<-s.done
}
