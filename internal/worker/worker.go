// Package worker implements the deferred half of the allocation pipeline:
// a pool of background goroutines that drain pending records from the write
// queue into the relational store, and the periodic sweeper that reconciles
// denormalized counts with the counter service.
//
// Delivery contract: triggers are at-least-once. A trigger against an
// already-drained queue is a no-op, which makes duplicate delivery and
// redelivery after retries safe. Persistence order across two numbers of the
// same key is not guaranteed (two workers may race); uniqueness of the
// numbers themselves is enforced by the store, not here.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/queue"
	"github.com/tbourn/go-chat-journal/internal/repo"
)

// Kind discriminates the two ingestion variants.
type Kind string

const (
	// KindChat drains one pending chat for an application.
	KindChat Kind = "chat"
	// KindMessage drains one pending message for a chat.
	KindMessage Kind = "message"
)

// Trigger asks the pool to drain one pending record. OwnerID is the
// application id for KindChat and the chat id for KindMessage.
type Trigger struct {
	Kind    Kind
	OwnerID string

	attempt int
}

// Notifier observes successful message persistence. The ingestion worker
// calls it fire-and-forget after the row is durably stored; implementations
// must not block.
type Notifier interface {
	MessagePersisted(msg *domain.Message)
}

// Options tunes the pool. Zero values fall back to the defaults below.
type Options struct {
	// Workers is the number of draining goroutines.
	Workers int
	// QueueSize is the trigger channel buffer.
	QueueSize int
	// RetryMax bounds redelivery attempts for transient persistence failures.
	RetryMax int
	// RetryDelay spaces redelivery attempts.
	RetryDelay time.Duration
}

func (o *Options) withDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
}

// ErrStopped is returned by Dispatch once Stop has been called. The pending
// record is unaffected: it stays at the head of its queue for a later run.
var ErrStopped = errors.New("worker pool stopped")

// Pool consumes triggers from a buffered channel with a fixed set of
// goroutines. Workers suspend on the channel when idle; there is no polling.
type Pool struct {
	db       *gorm.DB
	queues   queue.Store
	notifier Notifier
	opts     Options
	log      zerolog.Logger

	triggers chan Trigger
	done     chan struct{}
	wg       sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool wires a pool over the given store handles. notifier may be nil
// when no one observes message persistence (e.g. some tests).
func NewPool(db *gorm.DB, queues queue.Store, notifier Notifier, opts Options, log zerolog.Logger) *Pool {
	opts.withDefaults()
	return &Pool{
		db:       db,
		queues:   queues,
		notifier: notifier,
		opts:     opts,
		log:      log.With().Str("component", "worker").Logger(),
		triggers: make(chan Trigger, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled, or
// when Stop is called after the buffered triggers have drained.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.opts.Workers; i++ {
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case tr := <-p.triggers:
						p.run(ctx, tr)
					case <-p.done:
						p.drainRemaining(ctx)
						return
					}
				}
			}()
		}
	})
}

// drainRemaining consumes whatever is already buffered at shutdown without
// blocking for more.
func (p *Pool) drainRemaining(ctx context.Context) {
	for {
		select {
		case tr := <-p.triggers:
			p.run(ctx, tr)
		default:
			return
		}
	}
}

// Stop rejects further dispatches, drains triggers already buffered, and
// waits for in-flight runs to finish. The trigger channel is never closed:
// retry timers armed before Stop may still call Dispatch afterwards and get
// ErrStopped, with their record left at the queue head.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Dispatch hands a trigger to the pool. It blocks only when the buffer is
// full, and gives up when ctx is cancelled or the pool is stopped first.
func (p *Pool) Dispatch(ctx context.Context, tr Trigger) error {
	select {
	case <-p.done:
		return ErrStopped
	default:
	}
	select {
	case p.triggers <- tr:
		return nil
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes a single trigger and handles the retry policy. Transient
// persistence failures put the record back at the head of its queue and
// schedule a redelivery; duplicates and exhausted retries are terminal.
func (p *Pool) run(ctx context.Context, tr Trigger) {
	var err error
	switch tr.Kind {
	case KindChat:
		err = p.drainChat(ctx, tr.OwnerID)
	case KindMessage:
		err = p.drainMessage(ctx, tr.OwnerID)
	default:
		p.log.Error().Str("kind", string(tr.Kind)).Msg("unknown trigger kind")
		return
	}
	if err == nil {
		return
	}

	if tr.attempt+1 >= p.opts.RetryMax {
		ingestTotal.WithLabelValues(string(tr.Kind), outcomeFailed).Inc()
		p.log.Error().Err(err).
			Str("kind", string(tr.Kind)).
			Str("owner_id", tr.OwnerID).
			Int("attempts", tr.attempt+1).
			Msg("ingestion giving up; record left at queue head")
		return
	}

	ingestTotal.WithLabelValues(string(tr.Kind), outcomeRetried).Inc()
	p.log.Warn().Err(err).
		Str("kind", string(tr.Kind)).
		Str("owner_id", tr.OwnerID).
		Int("attempt", tr.attempt+1).
		Msg("ingestion failed; scheduling redelivery")

	next := Trigger{Kind: tr.Kind, OwnerID: tr.OwnerID, attempt: tr.attempt + 1}
	time.AfterFunc(p.opts.RetryDelay, func() {
		if err := p.Dispatch(context.Background(), next); err != nil {
			// ErrStopped after shutdown; the record stays at the queue head.
			p.log.Warn().Err(err).
				Str("kind", string(next.Kind)).
				Str("owner_id", next.OwnerID).
				Msg("redelivery not dispatched; record stays queued")
		}
	})
}

// drainChat pops one pending chat for the application and persists it.
// A nil return means the trigger is settled (persisted, empty queue, or a
// terminal duplicate); a non-nil return requests a retry.
func (p *Pool) drainChat(ctx context.Context, applicationID string) error {
	app, err := repo.GetApplicationByID(ctx, p.db, applicationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Owner row gone; its queue can never be drained into a row.
			p.log.Warn().Str("application_id", applicationID).Msg("chat trigger for unknown application")
			return nil
		}
		return err
	}

	payload, err := p.queues.Pop(ctx, queue.ChatKey(app.Token))
	if errors.Is(err, queue.ErrEmpty) {
		ingestTotal.WithLabelValues(string(KindChat), outcomeEmpty).Inc()
		return nil
	}
	if err != nil {
		return err
	}

	var rec domain.PendingChat
	if err := json.Unmarshal(payload, &rec); err != nil {
		// Malformed records cannot succeed on retry either.
		ingestTotal.WithLabelValues(string(KindChat), outcomeFailed).Inc()
		p.log.Error().Err(err).Str("application_id", applicationID).Msg("dropping undecodable pending chat")
		return nil
	}

	if _, err := repo.InsertChat(ctx, p.db, rec.ApplicationID, rec.Number); err != nil {
		if errors.Is(err, repo.ErrDuplicateNumber) {
			ingestTotal.WithLabelValues(string(KindChat), outcomeDuplicate).Inc()
			p.log.Error().
				Str("application_id", rec.ApplicationID).
				Int64("number", rec.Number).
				Msg("duplicate chat number; dropping pending record")
			return nil
		}
		// Transient failure: put the record back so FIFO order survives the retry.
		if uerr := p.queues.Unpop(ctx, queue.ChatKey(app.Token), payload); uerr != nil {
			p.log.Error().Err(uerr).Msg("unpop failed; pending chat lost")
		}
		return err
	}

	if err := repo.IncrementChatsCount(ctx, p.db, rec.ApplicationID); err != nil {
		// The row is durable; count drift is repaired by the sweeper.
		p.log.Warn().Err(err).Str("application_id", rec.ApplicationID).Msg("chats_count increment failed")
	}
	ingestTotal.WithLabelValues(string(KindChat), outcomePersisted).Inc()
	return nil
}

// drainMessage pops one pending message for the chat and persists it, then
// notifies the search indexer.
func (p *Pool) drainMessage(ctx context.Context, chatID string) error {
	payload, err := p.queues.Pop(ctx, queue.MessageKey(chatID))
	if errors.Is(err, queue.ErrEmpty) {
		ingestTotal.WithLabelValues(string(KindMessage), outcomeEmpty).Inc()
		return nil
	}
	if err != nil {
		return err
	}

	var rec domain.PendingMessage
	if err := json.Unmarshal(payload, &rec); err != nil {
		ingestTotal.WithLabelValues(string(KindMessage), outcomeFailed).Inc()
		p.log.Error().Err(err).Str("chat_id", chatID).Msg("dropping undecodable pending message")
		return nil
	}

	msg, err := repo.InsertMessage(ctx, p.db, rec.ChatID, rec.Number, rec.Body)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateNumber) {
			ingestTotal.WithLabelValues(string(KindMessage), outcomeDuplicate).Inc()
			p.log.Error().
				Str("chat_id", rec.ChatID).
				Int64("number", rec.Number).
				Msg("duplicate message number; dropping pending record")
			return nil
		}
		if uerr := p.queues.Unpop(ctx, queue.MessageKey(chatID), payload); uerr != nil {
			p.log.Error().Err(uerr).Msg("unpop failed; pending message lost")
		}
		return err
	}

	if err := repo.IncrementMessagesCount(ctx, p.db, rec.ChatID); err != nil {
		p.log.Warn().Err(err).Str("chat_id", rec.ChatID).Msg("messages_count increment failed")
	}
	if p.notifier != nil {
		p.notifier.MessagePersisted(msg)
	}
	ingestTotal.WithLabelValues(string(KindMessage), outcomePersisted).Inc()
	return nil
}
