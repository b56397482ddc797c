// Package reconciler keeps the mirrored invitation, request and connection documents
// of two accounts in step. Every operation reads its preconditions and issues all of
// its writes inside one atomic unit of the document store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/campus-skillshare/backend/internal/store"
	"go.uber.org/zap"
)

var (
	ErrSelfRequest      = errors.New("cannot send a connection request to yourself")
	ErrProfileNotLoaded = errors.New("profile not loaded")
	ErrNotPending       = errors.New("relationship is no longer pending")
	ErrAlreadyConnected = errors.New("already connected")
	// ErrMirrorMissing means one half of a mirrored pair exists without the other.
	// Nothing is written; the pair is left for the user to retry or cancel.
	ErrMirrorMissing = errors.New("mirror document missing")
)

// Journal records the outcome of every operation.
type Journal interface {
	Record(activity *models.Activity) error
}

type Reconciler struct {
	store   store.Store
	journal Journal
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Reconciler)

func WithJournal(j Journal) Option {
	return func(r *Reconciler) { r.journal = j }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = l.Named("reconciler") }
}

func New(s store.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  s,
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendRequest writes invitation(target, actor) and request(actor, target), both pending.
// A previous denied or cancelled attempt does not block a new one. It returns the
// target's snapshot as embedded in the request.
func (r *Reconciler) SendRequest(ctx context.Context, actor *models.Account, targetUID string) (models.ProfileSnapshot, error) {
	if actor == nil {
		return models.ProfileSnapshot{}, ErrProfileNotLoaded
	}
	if actor.UID == targetUID {
		return models.ProfileSnapshot{}, ErrSelfRequest
	}

	var target models.ProfileSnapshot
	err := r.store.RunAtomic(ctx, func(tx store.Tx) error {
		doc, err := tx.Get(repositories.UserPath(targetUID))
		if err != nil {
			return notFound("user "+targetUID, err)
		}
		account, err := models.DecodeAccount(doc.ID, doc.Data)
		if err != nil {
			return err
		}
		if _, err := tx.Get(repositories.ConnectionPath(actor.UID, targetUID)); err == nil {
			return ErrAlreadyConnected
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := r.now()
		target = account.Snapshot()
		if err := tx.Set(repositories.InvitationPath(targetUID, actor.UID), models.NewPendingRelationship(actor.Snapshot(), now).ToMap()); err != nil {
			return err
		}
		return tx.Set(repositories.RequestPath(actor.UID, targetUID), models.NewPendingRelationship(target, now).ToMap())
	})
	r.record(actor.UID, targetUID, models.ActionSendRequest, err)
	if err != nil {
		return models.ProfileSnapshot{}, err
	}
	return target, nil
}

// Accept answers the pending invitation from fromUID. It creates both connection
// documents and flips both mirrors to accepted.
func (r *Reconciler) Accept(ctx context.Context, actor *models.Account, fromUID string) (models.Relationship, error) {
	if actor == nil {
		return models.Relationship{}, ErrProfileNotLoaded
	}
	if actor.UID == fromUID {
		return models.Relationship{}, ErrSelfRequest
	}

	var inv models.Relationship
	err := r.store.RunAtomic(ctx, func(tx store.Tx) error {
		var err error
		inv, err = r.pendingPair(tx, actor.UID, fromUID)
		if err != nil {
			return err
		}

		now := r.now()
		writes := []struct {
			path string
			data map[string]any
		}{
			{repositories.ConnectionPath(actor.UID, fromUID), models.NewConnection(inv.ProfileSnapshot, now).ToMap()},
			{repositories.ConnectionPath(fromUID, actor.UID), models.NewConnection(actor.Snapshot(), now).ToMap()},
		}
		for _, w := range writes {
			if err := tx.Set(w.path, w.data); err != nil {
				return err
			}
		}
		return r.answer(tx, actor.UID, fromUID, models.StatusAccepted, now)
	})
	r.record(actor.UID, fromUID, models.ActionAccept, err)
	if err != nil {
		return models.Relationship{}, err
	}
	return inv, nil
}

// Deny flips both mirrors of the pending invitation from fromUID to denied.
func (r *Reconciler) Deny(ctx context.Context, actorUID, fromUID string) (models.Relationship, error) {
	var inv models.Relationship
	err := r.store.RunAtomic(ctx, func(tx store.Tx) error {
		var err error
		inv, err = r.pendingPair(tx, actorUID, fromUID)
		if err != nil {
			return err
		}
		return r.answer(tx, actorUID, fromUID, models.StatusDenied, r.now())
	})
	r.record(actorUID, fromUID, models.ActionDeny, err)
	if err != nil {
		return models.Relationship{}, err
	}
	return inv, nil
}

// CancelOutgoing removes request(actor, to) and invitation(to, actor). The request
// must still be pending; a lone request whose invitation is already gone is removed too.
func (r *Reconciler) CancelOutgoing(ctx context.Context, actorUID, toUID string) (models.Relationship, error) {
	var req models.Relationship
	err := r.store.RunAtomic(ctx, func(tx store.Tx) error {
		doc, err := tx.Get(repositories.RequestPath(actorUID, toUID))
		if err != nil {
			return notFound("request to "+toUID, err)
		}
		req, err = models.DecodeRelationship(doc.ID, doc.Data)
		if err != nil {
			return err
		}
		if req.Status != models.StatusPending {
			return fmt.Errorf("request to %s is %s: %w", toUID, req.Status, ErrNotPending)
		}
		if err := tx.Delete(repositories.RequestPath(actorUID, toUID)); err != nil {
			return err
		}
		return tx.Delete(repositories.InvitationPath(toUID, actorUID))
	})
	r.record(actorUID, toUID, models.ActionCancel, err)
	if err != nil {
		return models.Relationship{}, err
	}
	return req, nil
}

// pendingPair loads invitation(owner, from) and checks that it is pending and mirrored.
func (r *Reconciler) pendingPair(tx store.Tx, owner, from string) (models.Relationship, error) {
	doc, err := tx.Get(repositories.InvitationPath(owner, from))
	if err != nil {
		return models.Relationship{}, notFound("invitation from "+from, err)
	}
	inv, err := models.DecodeRelationship(doc.ID, doc.Data)
	if err != nil {
		return models.Relationship{}, err
	}
	if inv.Status != models.StatusPending {
		return models.Relationship{}, fmt.Errorf("invitation from %s is %s: %w", from, inv.Status, ErrNotPending)
	}
	if _, err := tx.Get(repositories.RequestPath(from, owner)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Relationship{}, fmt.Errorf("request %s -> %s: %w", from, owner, ErrMirrorMissing)
		}
		return models.Relationship{}, err
	}
	return inv, nil
}

func (r *Reconciler) answer(tx store.Tx, owner, from string, status models.Status, at time.Time) error {
	change := models.StatusChange(status, at)
	if err := tx.Update(repositories.InvitationPath(owner, from), change); err != nil {
		return err
	}
	return tx.Update(repositories.RequestPath(from, owner), change)
}

func (r *Reconciler) record(actor, target, action string, err error) {
	activity := &models.Activity{
		ActorID:   actor,
		TargetID:  target,
		Action:    action,
		Outcome:   models.OutcomeOK,
		CreatedAt: r.now(),
	}
	if err != nil {
		activity.Outcome = models.OutcomeFailed
		activity.Error = err.Error()
		r.logger.Warn("reconciliation failed",
			zap.String("actor", actor),
			zap.String("target", target),
			zap.String("action", action),
			zap.Error(err))
	}
	if r.journal == nil {
		return
	}
	if jerr := r.journal.Record(activity); jerr != nil {
		r.logger.Warn("journal write failed", zap.String("action", action), zap.Error(jerr))
	}
}

func notFound(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
	}
	return err
}
