package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parkflow/internal/clock"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/session"
	"parkflow/internal/wizard"

	"github.com/robfig/cron/v3"
)

type JobService struct {
	wizards   *wizard.Registry
	store     session.Store
	backend   Backend
	clock     clock.Clock
	idleAfter time.Duration
	logger    *slog.Logger
}

func NewJobService(wizards *wizard.Registry, store session.Store, backend Backend, c clock.Clock, idleAfter time.Duration, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = clock.NewRealClock()
	}
	return &JobService{wizards: wizards, store: store, backend: backend, clock: c, idleAfter: idleAfter, logger: logger}
}

// Schedule registers both jobs on c. An empty spec leaves that job out.
func (s *JobService) Schedule(c *cron.Cron, sweepSpec, pollSpec string) error {
	if sweepSpec != "" {
		if _, err := c.AddFunc(sweepSpec, func() {
			if _, err := s.SweepIdleWizards(context.Background()); err != nil {
				s.logger.Error("cron job: sweeping idle wizards", "err", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling wizard sweep %q: %w", sweepSpec, err)
		}
	}
	if pollSpec != "" {
		if _, err := c.AddFunc(pollSpec, func() {
			if _, err := s.RefreshPendingReservations(context.Background()); err != nil {
				s.logger.Error("cron job: refreshing pending reservations", "err", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling reservation poll %q: %w", pollSpec, err)
		}
	}
	return nil
}

// SweepIdleWizards closes wizards nobody touched for idleAfter and drops their
// session slots. A session with a pending reservation keeps its slots: a late
// provider webhook still needs the credential, and the reservation poll clears
// the session once the reservation settles.
func (s *JobService) SweepIdleWizards(ctx context.Context) (int, error) {
	ids := s.wizards.Expire(s.clock.Now().Add(-s.idleAfter))
	if len(ids) == 0 {
		s.logger.Debug("cron job: no idle wizards")
		return 0, nil
	}
	idle := make([]string, 0, len(ids))
	for _, id := range ids {
		_, pending, err := s.store.Get(ctx, id, session.KeyPendingReservation)
		if err != nil {
			return len(ids), fmt.Errorf("cron job: reading pending reservation of %s: %w", id, err)
		}
		if pending {
			s.logger.Debug("cron job: keeping session with pending reservation", "session", id)
			continue
		}
		idle = append(idle, id)
	}
	if err := s.store.ClearSessions(ctx, idle); err != nil {
		return len(ids), fmt.Errorf("cron job: clearing %d idle sessions: %w", len(idle), err)
	}
	s.logger.Info("cron job: swept idle wizards", "count", len(ids), "cleared", len(idle))
	return len(ids), nil
}

// RefreshPendingReservations polls every pending reservation, pushes the new
// state into its wizard and forgets those that are settled or gone. A session
// whose wizard was already swept is dropped whole. It returns how many slots
// were cleared.
func (s *JobService) RefreshPendingReservations(ctx context.Context) (int, error) {
	slots, err := s.store.List(ctx, session.KeyPendingReservation)
	if err != nil {
		return 0, fmt.Errorf("cron job: listing pending reservations: %w", err)
	}

	cleared := 0
	for _, slot := range slots {
		done, err := s.refresh(ctx, slot)
		if err != nil {
			s.logger.Warn("cron job: refreshing reservation", "session", slot.SessionID, "reservation", slot.Value, "err", err)
			continue
		}
		if !done {
			continue
		}
		if _, live := s.wizards.Get(slot.SessionID); live {
			err = s.store.Clear(ctx, slot.SessionID, session.KeyPendingReservation)
		} else {
			err = s.store.ClearSessions(ctx, []string{slot.SessionID})
		}
		if err != nil {
			return cleared, fmt.Errorf("cron job: clearing pending reservation of %s: %w", slot.SessionID, err)
		}
		cleared++
	}
	if cleared > 0 {
		s.logger.Info("cron job: cleared pending reservations", "count", cleared, "checked", len(slots))
	}
	return cleared, nil
}

// refresh reports whether the slot can be forgotten.
func (s *JobService) refresh(ctx context.Context, slot session.Slot) (bool, error) {
	token, ok, err := s.store.Get(ctx, slot.SessionID, session.KeyCredentialToken)
	if err != nil {
		return false, err
	}
	if !ok {
		// nobody can look at it any more
		return true, nil
	}
	res, err := s.backend.GetReservation(ctx, token, slot.Value)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return true, nil
	case err != nil:
		return false, err
	}
	ensureVoucher(res)
	if w, ok := s.wizards.Get(slot.SessionID); ok {
		w.UpdateReservation(*res)
	}
	return res.Settled(), nil
}
