// Package session holds the state one signed-in user owns on the server: the cached
// profile, the name cache, the toast list, the live invitation feed and the cancel
// confirmation prompt. Every user-facing action goes through a Session, which turns
// failures into toasts before returning them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/campus-skillshare/backend/internal/conversations"
	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/matching"
	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/presence"
	"github.com/campus-skillshare/backend/internal/reconciler"
	"github.com/campus-skillshare/backend/internal/store"
	"go.uber.org/zap"
)

const (
	msgSignInToConnect = "You must be signed in to connect."
	msgSendFailed      = "Error: Failed to send request."
	msgAcceptFailed    = "Error: Failed to accept invitation."
	msgDenyFailed      = "Error: Failed to deny invitation."
	msgCancelFailed    = "Error: Failed to cancel request."
	msgProfileFailed   = "Error: Failed to update profile."
	msgMessageFailed   = "Error: Failed to send message."
	msgSummaryFailed   = "Message sent, but your conversation list could not be updated."
)

// ConversationView is a conversation summary as one participant sees it.
type ConversationView struct {
	models.Conversation
	DisplayName string `json:"displayName"`
	With        string `json:"with"`
}

type Session struct {
	id        identity.Identity
	deps      Deps
	logger    *zap.Logger
	toasts    *presence.Toasts
	feed      *presence.Feed
	gate      *presence.ConfirmGate
	names     *conversations.NameCache
	directory *conversations.Directory

	mu      sync.Mutex
	name    string
	profile *models.Account

	ctx       context.Context
	cancel    context.CancelFunc
	sub       *store.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id identity.Identity, deps Deps) *Session {
	logger := deps.Logger.With(zap.String("uid", id.UID), zap.String("session", id.SessionID))
	toastOpts := []presence.ToastOption{presence.WithDefaultTimeout(deps.ToastTimeout)}
	if deps.AfterFunc != nil {
		toastOpts = append(toastOpts, presence.WithAfterFunc(deps.AfterFunc))
	}
	toasts := presence.NewToasts(toastOpts...)
	s := &Session{
		id:        id,
		deps:      deps,
		logger:    logger,
		toasts:    toasts,
		feed:      presence.NewFeed(toasts, logger),
		gate:      presence.NewConfirmGate(),
		names:     conversations.NewNameCache(deps.Users),
		directory: conversations.NewDirectory(deps.Conversations, deps.Journal, logger),
		name:      id.Name,
		done:      make(chan struct{}),
	}
	if id.Name != "" {
		s.names.Put(id.UID, id.Name)
	}
	return s
}

// start subscribes to the owner's invitations and runs the feed until Close.
func (s *Session) start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	sub, err := s.deps.Relationships.SubscribeInvitations(ctx, s.id.UID)
	if err != nil {
		cancel()
		close(s.done)
		return fmt.Errorf("subscribe invitations: %w", err)
	}
	s.ctx = ctx
	s.cancel = cancel
	s.sub = sub
	go func() {
		defer close(s.done)
		if err := s.feed.Run(ctx, sub); err != nil {
			s.logger.Warn("invitation feed stopped", zap.Error(err))
		}
	}()
	return nil
}

// Close tears the session down: the feed subscription, every toast timer and every
// toast subscriber. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.sub != nil {
			s.sub.Cancel()
		}
		<-s.done
		s.toasts.Close()
	})
}

// Identity is the signed-in identity with the current display name.
func (s *Session) Identity() identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id
	id.Name = s.name
	return id
}

func (s *Session) UID() string { return s.id.UID }

// Profile returns the owner's profile, loading it on first use.
func (s *Session) Profile(ctx context.Context) (*models.Account, error) {
	s.mu.Lock()
	cached := s.profile
	s.mu.Unlock()
	if cached != nil {
		p := *cached
		return &p, nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads the owner's profile into the cache.
func (s *Session) Refresh(ctx context.Context) (*models.Account, error) {
	account, err := s.deps.Users.GetUserByID(ctx, s.id.UID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.profile = account
	if account.Name != "" {
		s.name = account.Name
	}
	s.mu.Unlock()
	s.names.Put(account.UID, account.DisplayName())
	p := *account
	return &p, nil
}

// Rename applies a display-name change to the identity, the cached profile and the
// name cache.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	s.name = name
	if s.profile != nil {
		s.profile.Name = name
	}
	s.mu.Unlock()
	if name != "" {
		s.names.Put(s.id.UID, name)
	}
}

// loadedProfile is Profile with every failure reported as ErrProfileNotLoaded.
func (s *Session) loadedProfile(ctx context.Context) (*models.Account, error) {
	account, err := s.Profile(ctx)
	if err != nil {
		s.toasts.Push(msgSignInToConnect, 0)
		return nil, fmt.Errorf("%w: %v", reconciler.ErrProfileNotLoaded, err)
	}
	return account, nil
}

// UpdateProfile merges the edit into the owner's profile and refreshes the cache.
func (s *Session) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.Account, error) {
	if err := s.deps.Users.UpdateProfile(ctx, s.id.UID, req.ProfileUpdate()); err != nil {
		s.toasts.Push(msgProfileFailed, 0)
		return nil, err
	}
	account, err := s.Refresh(ctx)
	if err != nil {
		s.toasts.Push(msgProfileFailed, 0)
		return nil, err
	}
	s.toasts.Push("Profile updated", 0)
	return account, nil
}

// User returns another user's profile.
func (s *Session) User(ctx context.Context, uid string) (*models.Account, error) {
	return s.deps.Users.GetUserByID(ctx, uid)
}

// Explore lists everyone else that passes f, annotated with my relationship to them.
func (s *Session) Explore(ctx context.Context, f matching.Filter) ([]matching.Profile, error) {
	accounts, err := s.deps.Users.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := s.deps.Relationships.ListConnections(ctx, s.id.UID)
	if err != nil {
		return nil, err
	}
	requests, err := s.deps.Relationships.ListRequests(ctx, s.id.UID)
	if err != nil {
		return nil, err
	}

	connected := make(map[string]bool, len(conns))
	for _, c := range conns {
		connected[c.UID] = true
	}
	pending := make(map[string]bool, len(requests))
	for _, r := range requests {
		if r.Status == models.StatusPending {
			pending[r.UID] = true
		}
	}
	return matching.Explore(s.id.UID, accounts, f, connected, pending), nil
}

// Suggestions scores every other user against my skills.
func (s *Session) Suggestions(ctx context.Context) ([]matching.Suggestion, error) {
	me, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := s.deps.Users.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	others := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.UID != me.UID {
			others = append(others, a)
		}
	}
	return matching.Suggest(*me, others), nil
}

// Invitations returns the pending invitations addressed to me.
func (s *Session) Invitations(ctx context.Context) ([]models.Relationship, error) {
	all, err := s.deps.Relationships.ListInvitations(ctx, s.id.UID)
	if err != nil {
		return nil, err
	}
	return pendingOnly(all), nil
}

// Requests returns my pending outgoing requests.
func (s *Session) Requests(ctx context.Context) ([]models.Relationship, error) {
	all, err := s.deps.Relationships.ListRequests(ctx, s.id.UID)
	if err != nil {
		return nil, err
	}
	return pendingOnly(all), nil
}

func (s *Session) Connections(ctx context.Context) ([]models.Connection, error) {
	return s.deps.Relationships.ListConnections(ctx, s.id.UID)
}

// SendRequest asks targetUID to connect.
func (s *Session) SendRequest(ctx context.Context, targetUID string) (models.ProfileSnapshot, error) {
	me, err := s.loadedProfile(ctx)
	if err != nil {
		return models.ProfileSnapshot{}, err
	}
	target, err := s.deps.Reconciler.SendRequest(ctx, me, targetUID)
	if err != nil {
		s.toasts.Push(msgSendFailed, 0)
		return models.ProfileSnapshot{}, err
	}
	s.toasts.Push("Connection request sent to "+target.DisplayName(), 0)
	return target, nil
}

// Accept answers the pending invitation from fromUID.
func (s *Session) Accept(ctx context.Context, fromUID string) (models.Relationship, error) {
	me, err := s.loadedProfile(ctx)
	if err != nil {
		return models.Relationship{}, err
	}
	inv, err := s.deps.Reconciler.Accept(ctx, me, fromUID)
	if err != nil {
		s.toasts.Push(msgAcceptFailed, 0)
		return models.Relationship{}, err
	}
	s.names.Put(inv.UID, inv.DisplayName())
	s.toasts.Push("You are now connected with "+inv.DisplayName(), 0)
	return inv, nil
}

// Deny declines the pending invitation from fromUID.
func (s *Session) Deny(ctx context.Context, fromUID string) (models.Relationship, error) {
	inv, err := s.deps.Reconciler.Deny(ctx, s.id.UID, fromUID)
	if err != nil {
		s.toasts.Push(msgDenyFailed, 0)
		return models.Relationship{}, err
	}
	s.toasts.Push("Declined invitation from "+inv.DisplayName(), 0)
	return inv, nil
}

// RequestCancel opens the confirmation prompt for my pending request to toUID.
// Nothing is deleted until ConfirmCancel.
func (s *Session) RequestCancel(ctx context.Context, toUID string) (models.Relationship, error) {
	req, err := s.deps.Relationships.GetRequest(ctx, s.id.UID, toUID)
	if err != nil {
		return models.Relationship{}, err
	}
	if req.Status != models.StatusPending {
		return models.Relationship{}, reconciler.ErrNotPending
	}
	s.gate.Open(req)
	return req, nil
}

// PendingCancel returns the request held by the confirmation prompt.
func (s *Session) PendingCancel() (models.Relationship, bool) {
	return s.gate.Held()
}

// ConfirmCancel deletes the held request and its invitation mirror. On failure the
// prompt stays open on the same request.
func (s *Session) ConfirmCancel(ctx context.Context) (models.Relationship, error) {
	var cancelled models.Relationship
	target, err := s.gate.Confirm(ctx, func(ctx context.Context, target models.Relationship) error {
		var err error
		cancelled, err = s.deps.Reconciler.CancelOutgoing(ctx, s.id.UID, target.UID)
		return err
	})
	if err != nil {
		if !errors.Is(err, presence.ErrNothingHeld) {
			s.toasts.Push(msgCancelFailed, 0)
		}
		return target, err
	}
	s.toasts.Push("Cancelled request to "+cancelled.DisplayName(), 0)
	return cancelled, nil
}

// DismissCancel closes the confirmation prompt without side effects.
func (s *Session) DismissCancel() bool {
	return s.gate.Dismiss()
}

// Conversations lists my conversations with the name each one is shown under.
func (s *Session) Conversations(ctx context.Context) ([]ConversationView, error) {
	convs, err := s.directory.List(ctx, s.id.UID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, convs), nil
}

func (s *Session) views(ctx context.Context, convs []models.Conversation) []ConversationView {
	s.names.Prefetch(ctx, s.id.UID, convs)
	views := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, ConversationView{
			Conversation: c,
			DisplayName:  conversations.DisplayName(ctx, c, s.id.UID, s.names),
			With:         c.Other(s.id.UID),
		})
	}
	return views
}

// Partner resolves the user on the other side of my conversation with otherUID.
func (s *Session) Partner(ctx context.Context, otherUID string) (conversations.Partner, error) {
	conv := models.Conversation{ChatID: models.PairID(s.id.UID, otherUID), Participants: models.SortedPair(s.id.UID, otherUID)}
	partner, err := conversations.OpenPartner(ctx, conv, s.id.UID, s.deps.Users)
	if err != nil {
		return conversations.Partner{}, err
	}
	s.names.Put(partner.UID, partner.Name)
	return partner, nil
}

func (s *Session) Messages(ctx context.Context, otherUID string) ([]models.Message, error) {
	return s.directory.Messages(ctx, s.id.UID, otherUID)
}

// SendMessage appends a message to my conversation with otherUID. A message stored
// without its summary update is reported as a toast, not as a failure.
func (s *Session) SendMessage(ctx context.Context, otherUID, text string) (models.Message, error) {
	msg, err := s.directory.Send(ctx, s.id.UID, otherUID, text)
	if errors.Is(err, conversations.ErrSummaryNotUpdated) {
		s.toasts.Push(msgSummaryFailed, 0)
		return msg, nil
	}
	if err != nil {
		s.toasts.Push(msgMessageFailed, 0)
		return models.Message{}, err
	}
	return msg, nil
}

func (s *Session) SetTitle(ctx context.Context, otherUID, title string) error {
	return s.directory.SetTitle(ctx, s.id.UID, otherUID, title)
}

// Toasts returns the live notifications, oldest first.
func (s *Session) Toasts() []models.Toast { return s.toasts.List() }

func (s *Session) DismissToast(id string) bool { return s.toasts.Dismiss(id) }

// SubscribeToasts streams every toast pushed from now on until cancel or Close.
func (s *Session) SubscribeToasts() (<-chan models.Toast, func()) { return s.toasts.Subscribe() }

// Notify pushes a toast, for handlers reporting their own outcome.
func (s *Session) Notify(message string) models.Toast { return s.toasts.Push(message, 0) }

func pendingOnly(all []models.Relationship) []models.Relationship {
	out := make([]models.Relationship, 0, len(all))
	for _, r := range all {
		if r.Status == models.StatusPending {
			out = append(out, r)
		}
	}
	return out
}
