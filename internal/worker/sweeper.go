// Package worker: reconciliation sweeper.
//
// The denormalized chats_count and messages_count columns are bumped by
// workers outside any transaction with the insert, so they drift when an
// increment fails or a process dies mid-pipeline. The sweeper periodically
// compares each count against the counter service and raises it to the
// counter value when the counter is strictly greater.
//
// The repair is forward-only and count-only: it never decreases a count and
// never creates rows for numbers that were allocated but never persisted.
// Counts therefore mean "sequence values allocated", which can overstate the
// rows that actually exist when a pending record was permanently lost.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/counter"
	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/repo"
)

// Sweeper periodically reconciles denormalized counts with the counter
// service. One instance runs per process; runs are single-threaded.
type Sweeper struct {
	db       *gorm.DB
	counters counter.Store
	interval time.Duration
	batch    int
	log      zerolog.Logger
}

// NewSweeper builds a sweeper. A non-positive interval defaults to one
// minute, a non-positive batch size to 100.
func NewSweeper(db *gorm.DB, counters counter.Store, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		db:       db,
		counters: counters,
		interval: interval,
		batch:    100,
		log:      log.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. Errors are logged
// and the loop continues; a broken sweep must not take the process down.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// SweepOnce performs a single full reconciliation pass over every
// application and every chat.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	for offset := 0; ; offset += s.batch {
		apps, err := repo.ListApplicationsBatch(ctx, s.db, offset, s.batch)
		if err != nil {
			return err
		}
		if len(apps) == 0 {
			return nil
		}
		for i := range apps {
			if err := s.sweepApplication(ctx, &apps[i]); err != nil {
				return err
			}
		}
		if len(apps) < s.batch {
			return nil
		}
	}
}

func (s *Sweeper) sweepApplication(ctx context.Context, app *domain.Application) error {
	allocated, err := s.counters.Peek(ctx, counter.ChatKey(app.Token))
	if err != nil {
		return err
	}
	if allocated > app.ChatsCount {
		if err := repo.SetChatsCount(ctx, s.db, app.ID, allocated); err != nil {
			return err
		}
		sweepCorrections.WithLabelValues(string(KindChat)).Inc()
		s.log.Info().
			Str("application_id", app.ID).
			Int64("stored", app.ChatsCount).
			Int64("allocated", allocated).
			Msg("raised chats_count")
	}

	for offset := 0; ; offset += s.batch {
		chats, err := repo.ListChatsPage(ctx, s.db, app.ID, offset, s.batch)
		if err != nil {
			return err
		}
		if len(chats) == 0 {
			return nil
		}
		for i := range chats {
			c := &chats[i]
			allocated, err := s.counters.Peek(ctx, counter.MessageKey(c.ID))
			if err != nil {
				return err
			}
			if allocated > c.MessagesCount {
				if err := repo.SetMessagesCount(ctx, s.db, c.ID, allocated); err != nil {
					return err
				}
				sweepCorrections.WithLabelValues(string(KindMessage)).Inc()
				s.log.Info().
					Str("chat_id", c.ID).
					Int64("stored", c.MessagesCount).
					Int64("allocated", allocated).
					Msg("raised messages_count")
			}
		}
		if len(chats) < s.batch {
			return nil
		}
	}
}
