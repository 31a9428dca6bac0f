// Package indexer implements the event-driven indexer control loop.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/summit/services/sbomindexd/internal/audit"
	"github.com/summit/services/sbomindexd/internal/bus"
	"github.com/summit/services/sbomindexd/internal/extractor"
	"github.com/summit/services/sbomindexd/internal/index"
	"github.com/summit/services/sbomindexd/internal/storage"
)

// ConsumerGroup is the bus consumer group the loop subscribes under.
const ConsumerGroup = "sbomindexd"

// reindexSnapshotBatch bounds how many staged documents a reindex sweep
// accumulates before taking a partial snapshot.
const reindexSnapshotBatch = 64

// Loop is the single-writer reactive scheduler at the core of the service:
// it multiplexes a reindex command, the stored-topic event consumer, and a
// periodic ticker, and owns the one writer onto the index.
type Loop struct {
	Store   *index.Store
	Objects storage.ObjectStore
	Bus     bus.Bus
	Commits *CommitLogWriter
	Status  *StatusHandle

	// Audit, when non-nil, mirrors indexed/failed outcomes to the durable
	// ledger alongside the bus topics.
	Audit *audit.Ledger

	Interval time.Duration

	commands   chan struct{}
	writerCh   chan func()
	generation int64
}

// New builds a Loop. Call Run to start it.
func New(store *index.Store, objects storage.ObjectStore, b bus.Bus, commits *CommitLogWriter, interval time.Duration) *Loop {
	return &Loop{
		Store:    store,
		Objects:  objects,
		Bus:      b,
		Commits:  commits,
		Status:   NewStatusHandle(),
		Interval: interval,
		commands: make(chan struct{}, 1),
		writerCh: make(chan func(), 8),
	}
}

// RequestReindex enqueues a Reindex command; redundant requests while one is
// already pending are dropped.
func (l *Loop) RequestReindex() {
	select {
	case l.commands <- struct{}{}:
	default:
	}
}

// Run executes the loop until ctx is cancelled. The caller hands it a Store
// already restored from the latest snapshot (index.OpenWithSnapshot); a bus
// subscription failure here is fatal and terminates the process. Everything
// thereafter is handled in-loop without returning.
func (l *Loop) Run(ctx context.Context) error {
	consumer, err := l.Bus.Subscribe(ctx, ConsumerGroup, bus.TopicStored)
	if err != nil {
		return wrapErr(CategoryBus, "", err)
	}

	go l.writerWorker(ctx)

	events := make(chan *bus.Message)
	go l.pumpEvents(ctx, consumer, events)

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	l.Status.SetRunning()

	var pending []*bus.Message
	builder := NewCommitBuilder(l.generation)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-l.commands:
			l.reindex(ctx)
			builder = NewCommitBuilder(l.generation)

		case msg := <-events:
			if msg == nil {
				continue
			}
			touched := l.applyMessage(ctx, msg)
			pending = append(pending, msg)
			for _, id := range touched {
				builder.Touch(id)
			}

		case <-ticker.C:
			if l.Store.Pending() == 0 && len(pending) == 0 {
				continue // heartbeat only, nothing to snapshot
			}
			if l.Store.Pending() > 0 {
				if err := l.commitAndSnapshot(ctx, builder); err != nil {
					log.Printf("indexer: snapshot failed, retaining %d uncommitted events: %v", len(pending), err)
					continue
				}
				l.generation++
				builder = NewCommitBuilder(l.generation)
			}
			// Offsets are acknowledged only after the snapshot landed.
			// Events whose every record failed extraction staged no
			// mutation; they are acknowledged here too, since a redelivery
			// would fail identically.
			if err := consumer.Commit(ctx, pending); err != nil {
				log.Printf("indexer: bus commit failed: %v", err)
				continue
			}
			pending = nil
		}
	}
}

// writerWorker executes submitted writer closures on a single dedicated
// goroutine so that CPU-bound index mutations never run inline on the
// select loop above.
func (l *Loop) writerWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.writerCh:
			fn()
		}
	}
}

// submitWriter runs fn on the writer worker and blocks for its result.
func (l *Loop) submitWriter(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	select {
	case l.writerCh <- func() { done <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pumpEvents feeds consumer.Next results to out, polling gently when the
// bus has nothing available rather than busy-looping.
func (l *Loop) pumpEvents(ctx context.Context, consumer bus.Consumer, out chan<- *bus.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, err := consumer.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("indexer: bus read error: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if msg == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// applyMessage decodes msg's storage events and applies each as a put or
// delete, returning the sbom_ids touched so they can be recorded in the
// current commit cycle.
func (l *Loop) applyMessage(ctx context.Context, msg *bus.Message) []string {
	events, err := storage.DecodeEvents(msg.Payload)
	if err != nil {
		log.Printf("indexer: malformed event payload: %v", err)
		return nil
	}
	var touched []string
	for _, ev := range events {
		if err := l.applyEvent(ctx, ev); err != nil {
			log.Printf("indexer: %v", err)
			continue
		}
		touched = append(touched, ev.Key)
	}
	return touched
}

// applyEvent runs the index-doc path for a single put event, or a removal
// for a delete event. A document parse or index failure is reported on the
// failed topic and returned, so the caller logs it and leaves the key out
// of the commit cycle; it is not treated as a loop error.
func (l *Loop) applyEvent(ctx context.Context, ev storage.Event) error {
	if ev.Type == storage.EventDelete {
		return l.submitWriter(ctx, func() error {
			return l.Store.DeleteDocument(ev.Key)
		})
	}

	raw, err := l.Objects.GetForEvent(ctx, ev)
	if err != nil {
		return wrapErr(CategoryStorage, ev.Key, err)
	}
	doc, err := extractor.Extract(ev.Key, raw)
	if err != nil {
		l.publishFailed(ctx, ev.Key, err)
		return wrapErr(CategoryDocParser, ev.Key, err)
	}
	if err := l.submitWriter(ctx, func() error {
		return l.Store.AddDocument(doc)
	}); err != nil {
		l.publishFailed(ctx, ev.Key, err)
		return wrapErr(CategoryIndex, ev.Key, err)
	}
	if err := l.Bus.Send(ctx, bus.TopicIndexed, []byte(ev.Key)); err != nil {
		log.Printf("indexer: publish indexed(%s) failed: %v", ev.Key, err)
	}
	l.recordAudit(ctx, ev.Key, audit.OutcomeIndexed, nil)
	return nil
}

func (l *Loop) publishFailed(ctx context.Context, key string, cause error) {
	payload, _ := json.Marshal(bus.FailedPayload{Key: key, Error: cause.Error()})
	if err := l.Bus.Send(ctx, bus.TopicFailed, payload); err != nil {
		log.Printf("indexer: publish failed(%s) failed: %v", key, err)
	}
	l.recordAudit(ctx, key, audit.OutcomeFailed, cause)
}

// recordAudit best-effort mirrors an outcome to the ledger; a ledger write
// failure never fails the event that produced it.
func (l *Loop) recordAudit(ctx context.Context, key string, outcome audit.Outcome, cause error) {
	if l.Audit == nil {
		return
	}
	if err := l.Audit.Record(ctx, key, outcome, cause); err != nil {
		log.Printf("indexer: audit record %s failed: %v", key, err)
	}
}

// commitAndSnapshot commits the writer's staged batch, packages a snapshot,
// uploads it, and writes a commit log entry. It does not acknowledge bus
// offsets; the caller does that only after this succeeds.
func (l *Loop) commitAndSnapshot(ctx context.Context, builder *CommitBuilder) error {
	if err := l.submitWriter(ctx, l.Store.Commit); err != nil {
		return wrapErr(CategoryIndex, "", err)
	}
	dir := l.Store.Dir()
	if dir != "" {
		blob, err := index.Snapshot(dir)
		if err != nil {
			return wrapErr(CategoryIndex, "", err)
		}
		if err := l.Objects.PutIndex(ctx, blob); err != nil {
			return wrapErr(CategoryStorage, "", err)
		}
	}
	if l.Commits != nil && !builder.Empty() {
		entry, err := builder.Build()
		if err != nil {
			return wrapErr(CategoryInternal, "", err)
		}
		if _, err := l.Commits.Write(entry); err != nil {
			log.Printf("indexer: commit log write failed: %v", err)
		}
	}
	return nil
}

// reindex rebuilds the index from every object under storage.DataPrefix,
// transitioning status through Reindexing and back to Running. A fatal
// enumeration error transitions status to Failed instead. Offsets of
// already-applied stored events are untouched by a reindex.
func (l *Loop) reindex(ctx context.Context) {
	l.Status.SetReindexing(0)
	builder := NewCommitBuilder(l.generation)
	count := 0
	lastSnapshot := time.Now()

	err := l.Objects.ListPrefix(ctx, storage.DataPrefix, func(obj storage.Object) error {
		doc, perr := extractor.Extract(obj.Key, obj.Data)
		if perr != nil {
			l.publishFailed(ctx, obj.Key, perr)
		} else if werr := l.submitWriter(ctx, func() error { return l.Store.AddDocument(doc) }); werr != nil {
			l.publishFailed(ctx, obj.Key, werr)
		} else {
			builder.Touch(obj.Key)
		}
		count++
		l.Status.SetReindexing(count)

		// The sweep occupies the select loop, so the periodic tick cannot
		// fire while it runs; take partial snapshots here instead so a
		// crash mid-reindex over a large store preserves progress.
		if l.Store.Pending() >= reindexSnapshotBatch ||
			(l.Store.Pending() > 0 && time.Since(lastSnapshot) >= l.Interval) {
			if cerr := l.commitAndSnapshot(ctx, builder); cerr != nil {
				log.Printf("indexer: partial snapshot failed, continuing reindex: %v", cerr)
			} else {
				l.generation++
				builder = NewCommitBuilder(l.generation)
			}
			lastSnapshot = time.Now()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return nil
	})
	if err != nil {
		l.Status.SetFailed(err)
		return
	}

	if cerr := l.commitAndSnapshot(ctx, builder); cerr != nil {
		l.Status.SetFailed(cerr)
		return
	}
	l.generation++
	l.Status.SetRunning()
}
