// Package conversations maintains the per-pair conversation summaries and resolves
// how each conversation is shown to a participant.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/campus-skillshare/backend/internal/repositories"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrNotParticipant = errors.New("not a participant of this conversation")
	// ErrSummaryNotUpdated means the message was stored but the conversation list
	// still shows the previous one.
	ErrSummaryNotUpdated = errors.New("conversation summary not updated")
)

// Journal records sent messages in the activity log.
type Journal interface {
	Record(activity *models.Activity) error
}

type Directory struct {
	repo    repositories.ConversationRepository
	journal Journal
	logger  *zap.Logger
	now     func() time.Time
}

func NewDirectory(repo repositories.ConversationRepository, journal Journal, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{repo: repo, journal: journal, logger: logger.Named("conversations"), now: time.Now}
}

// Send appends a message from me to other and then upserts the pair's summary. The
// message is the source of truth: when only the summary write fails, the stored
// message is returned together with ErrSummaryNotUpdated. The summary heals on the
// next send.
func (d *Directory) Send(ctx context.Context, me, other, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if me == other {
		return models.Message{}, ErrNotParticipant
	}

	pair := models.PairID(me, other)
	id, err := d.repo.AppendMessage(ctx, pair, me, text)
	d.record(me, other, err)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	msg, err := d.repo.GetMessage(ctx, pair, id)
	if err != nil {
		d.logger.Debug("message read-back failed", zap.String("chatId", pair), zap.Error(err))
		msg = models.Message{ID: id, From: me, Text: text, CreatedAt: d.now().UTC()}
	}
	if err := d.repo.UpsertSummary(ctx, pair, models.SortedPair(me, other), text); err != nil {
		d.logger.Warn("summary upsert failed", zap.String("chatId", pair), zap.Error(err))
		return msg, fmt.Errorf("%w: %v", ErrSummaryNotUpdated, err)
	}
	return msg, nil
}

// List returns my conversations, most recently updated first.
func (d *Directory) List(ctx context.Context, me string) ([]models.Conversation, error) {
	return d.repo.ListConversations(ctx, me)
}

// Messages returns the messages between me and other in send order.
func (d *Directory) Messages(ctx context.Context, me, other string) ([]models.Message, error) {
	if me == other {
		return nil, ErrNotParticipant
	}
	return d.repo.ListMessages(ctx, models.PairID(me, other))
}

// SetTitle names the conversation between me and other for both participants.
func (d *Directory) SetTitle(ctx context.Context, me, other, title string) error {
	if me == other {
		return ErrNotParticipant
	}
	return d.repo.SetTitle(ctx, models.PairID(me, other), models.SortedPair(me, other), strings.TrimSpace(title))
}

// DisplayName is the explicit title if there is one, else the other participant's
// cached name, else their uid.
func DisplayName(ctx context.Context, conv models.Conversation, me string, names *NameCache) string {
	if strings.TrimSpace(conv.Title) != "" {
		return conv.Title
	}
	other := conv.Other(me)
	if other == "" {
		return conv.ChatID
	}
	if names == nil {
		return other
	}
	return names.Resolve(ctx, other)
}

// Partner is the other participant of a conversation as shown when it is opened.
type Partner struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	University string `json:"university,omitempty"`
}

// OpenPartner resolves the other participant's profile, falling back to {uid, uid}.
func OpenPartner(ctx context.Context, conv models.Conversation, me string, users ProfileLookup) (Partner, error) {
	other := conv.Other(me)
	if other == "" {
		return Partner{}, ErrNotParticipant
	}
	account, err := users.GetUserByID(ctx, other)
	if err != nil {
		return Partner{UID: other, Name: other}, nil
	}
	return Partner{UID: other, Name: account.DisplayName(), University: account.University}, nil
}

func (d *Directory) record(me, other string, err error) {
	if d.journal == nil {
		return
	}
	activity := &models.Activity{ActorID: me, TargetID: other, Action: models.ActionMessage, Outcome: models.OutcomeOK}
	if err != nil {
		activity.Outcome = models.OutcomeFailed
		activity.Error = err.Error()
	}
	if jerr := d.journal.Record(activity); jerr != nil {
		d.logger.Warn("journal write failed", zap.Error(jerr))
	}
}
