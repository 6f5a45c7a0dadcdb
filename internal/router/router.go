// Package router classifies webhook events and dispatches them.
//
// Messages, postbacks and feed comments fan out from one webhook entry.
// Every session-touching path runs under the sender's keyed lock, so two
// deliveries for the same user can never interleave a state transition.
package router

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/kiara-bot/kiara/internal/conversation"
	"github.com/kiara-bot/kiara/internal/dedup"
	"github.com/kiara-bot/kiara/internal/models"
	"github.com/kiara-bot/kiara/internal/session"
	"github.com/kiara-bot/kiara/internal/store"
)

// Outbound is the delivery surface the router enqueues replies on.
type Outbound interface {
	Enqueue(recipientID, pageToken string, directives []models.ReplyDirective)
	EnqueueAfter(delay time.Duration, recipientID, pageToken string, directives []models.ReplyDirective)
}

// Delays applied to comment handling so the DM lands after Facebook has
// surfaced the comment, and the booking prompt lands after the DM.
const (
	CommentReplyDelay   = 2 * time.Second
	CommentBookingDelay = 4 * time.Second
)

// refreshCommand is the admin message that reloads keyword tables.
const refreshCommand = "refresh data"

// bookingMessageKeywords trigger a booking from a direct message.
var bookingMessageKeywords = []string{"order", "book"}

// bookingCommentKeywords trigger a booking from a post comment.
var bookingCommentKeywords = []string{"book", "order", "reserve", "appointment"}

// manila is the timezone for the "time" keyword action.
var manila = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Opts holds configuration options for the router.
type Opts struct {
	Now  func() time.Time
	Pick func(n int) int
}

// Option defines a configuration option for the router.
type Option func(*Opts)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// WithPick overrides the reply-variant picker (used in tests).
func WithPick(pick func(n int) int) Option {
	return func(o *Opts) { o.Pick = pick }
}

// Router dispatches classified webhook events.
type Router struct {
	store      store.Store
	keywords   *store.KeywordCache
	controller *conversation.Controller
	locks      *session.KeyedLock
	dedup      dedup.Cache
	out        Outbound
	now        func() time.Time
	pick       func(n int) int
}

// NewRouter creates a router over the given collaborators.
func NewRouter(st store.Store, keywords *store.KeywordCache, ctrl *conversation.Controller,
	locks *session.KeyedLock, cache dedup.Cache, out Outbound, opts ...Option) *Router {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.Intn
	}
	return &Router{
		store:      st,
		keywords:   keywords,
		controller: ctrl,
		locks:      locks,
		dedup:      cache,
		out:        out,
		now:        cfg.Now,
		pick:       cfg.Pick,
	}
}

// HandleEntry processes one webhook entry: it resolves the page and fans out
// its messaging events and feed changes. Unprovisioned pages are dropped.
func (r *Router) HandleEntry(ctx context.Context, entry models.WebhookEntry) {
	cfg, err := r.store.GetPageConfig(ctx, entry.ID)
	if err != nil {
		slog.Error("Failed to load page config", "error", err, "pageID", entry.ID)
		return
	}
	if cfg == nil {
		slog.Warn("Event for unprovisioned page dropped", "pageID", entry.ID, "error", models.ErrConfigMissing)
		return
	}

	for _, event := range entry.Messaging {
		switch {
		case event.Postback != nil:
			r.handlePostback(ctx, cfg, event.Sender.ID, event.Postback.Payload)
		case event.Message != nil:
			r.handleMessage(ctx, cfg, event.Sender.ID, event.Message.Text)
		default:
			slog.Debug("Messaging event without message or postback dropped", "pageID", cfg.PageID)
		}
	}

	for _, change := range entry.Changes {
		if change.Field != "feed" || change.Value.Item != "comment" || change.Value.Verb != "add" {
			continue
		}
		r.handleComment(ctx, cfg, change.Value)
	}
}

// handleMessage routes one inbound text message.
func (r *Router) handleMessage(ctx context.Context, cfg *models.PageConfig, senderID, text string) {
	if senderID == "" || senderID == cfg.PageID {
		return
	}
	slog.Debug("Message received", "pageID", cfg.PageID, "senderID", senderID)

	if err := r.store.LogUser(ctx, senderID); err != nil {
		slog.Error("Failed to log user", "error", err, "userID", senderID)
	}

	normalized := strings.ToLower(strings.TrimSpace(text))

	r.locks.With(senderID, func() {
		if normalized == refreshCommand {
			r.keywords.RefreshAll(ctx)
			r.out.Enqueue(senderID, cfg.PageToken, []models.ReplyDirective{models.TextDirective("Data refreshed!")})
			return
		}

		if r.controller.Active(senderID) {
			directives, err := r.controller.HandleText(ctx, senderID, text)
			if err != nil {
				slog.Error("Conversation step failed", "error", err, "userID", senderID)
			}
			r.out.Enqueue(senderID, cfg.PageToken, directives)
			return
		}

		if containsAny(normalized, bookingMessageKeywords) {
			r.startBooking(ctx, cfg, senderID, 0)
			return
		}

		if directives := r.keywordReply(ctx, cfg, normalized); directives != nil {
			r.out.Enqueue(senderID, cfg.PageToken, directives)
			return
		}

		r.out.Enqueue(senderID, cfg.PageToken, []models.ReplyDirective{models.TextDirective(conversation.MsgFallback)})
	})
}

// handlePostback routes one button press. Unknown payloads are dropped.
func (r *Router) handlePostback(ctx context.Context, cfg *models.PageConfig, senderID, payload string) {
	if senderID == "" || senderID == cfg.PageID {
		return
	}

	action, ok := models.DecodeActionPayload(payload)
	if !ok {
		slog.Warn("Unknown postback payload dropped", "pageID", cfg.PageID, "payload", payload)
		return
	}

	r.locks.With(senderID, func() {
		directives, err := r.controller.HandleAction(ctx, senderID, action)
		if err == models.ErrSessionMissing {
			slog.Debug("Postback without session", "userID", senderID, "kind", action.Kind)
			r.out.Enqueue(senderID, cfg.PageToken, []models.ReplyDirective{models.TextDirective(conversation.MsgFallback)})
			return
		}
		if err != nil {
			slog.Error("Postback handling failed", "error", err, "userID", senderID)
		}
		r.out.Enqueue(senderID, cfg.PageToken, directives)
	})
}

// handleComment routes one new post comment: dedup, a delayed DM (keyword
// match when possible, greeting otherwise), and an optional booking start
// when the comment shows booking intent.
func (r *Router) handleComment(ctx context.Context, cfg *models.PageConfig, value models.FeedValue) {
	if value.From == nil || value.From.ID == "" || value.From.ID == cfg.PageID {
		return
	}
	if value.Message == "" {
		slog.Debug("Comment without text dropped", "commentID", value.CommentID)
		return
	}
	userID := value.From.ID

	fresh, err := r.dedup.Remember(ctx, value.CommentID)
	if err != nil {
		// Dedup backend down: deliver anyway rather than go silent.
		slog.Error("Comment dedup check failed", "error", err, "commentID", value.CommentID)
	} else if !fresh {
		slog.Debug("Duplicate comment dropped", "commentID", value.CommentID, "error", models.ErrDuplicateEvent)
		return
	}
	slog.Info("Comment escalated to DM", "pageID", cfg.PageID, "commentID", value.CommentID, "userID", userID)

	if err := r.store.LogUser(ctx, userID); err != nil {
		slog.Error("Failed to log user", "error", err, "userID", userID)
	}

	normalized := strings.ToLower(value.Message)
	directives := r.keywordReply(ctx, cfg, normalized)
	if directives == nil {
		directives = []models.ReplyDirective{models.TextDirective(conversation.MsgCommentReply)}
	}
	r.out.EnqueueAfter(CommentReplyDelay, userID, cfg.PageToken, directives)

	if containsAny(normalized, bookingCommentKeywords) {
		r.locks.With(userID, func() {
			r.startBooking(ctx, cfg, userID, CommentBookingDelay)
		})
	}
}

// startBooking opens a booking flow and enqueues its confirmation prompt.
// Callers must hold the user's lock.
func (r *Router) startBooking(ctx context.Context, cfg *models.PageConfig, userID string, delay time.Duration) {
	directives, err := r.controller.Start(ctx, userID, cfg.BookingSourceID)
	if err != nil {
		slog.Error("Failed to start booking", "error", err, "userID", userID, "sourceID", cfg.BookingSourceID)
		return
	}
	r.out.EnqueueAfter(delay, userID, cfg.PageToken, directives)
}

// keywordReply matches the message against the page's keyword table and
// renders the reply, or returns nil when nothing matched.
func (r *Router) keywordReply(ctx context.Context, cfg *models.PageConfig, normalized string) []models.ReplyDirective {
	entries, err := r.keywords.Get(ctx, cfg.KeywordsSourceID, false)
	if err != nil {
		slog.Error("Keyword lookup failed", "error", err, "sourceID", cfg.KeywordsSourceID)
		return nil
	}

	for _, entry := range entries {
		if !matchesEntry(normalized, entry) {
			continue
		}
		return r.renderKeywordReply(entry)
	}
	return nil
}

// matchesEntry reports whether any of the entry's comma-separated keywords
// occurs in the message.
func matchesEntry(normalized string, entry models.KeywordEntry) bool {
	for _, keyword := range strings.Split(entry.Keywords, ",") {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}

// renderKeywordReply turns a matched entry into directives. The time action
// supersedes the stored reply text; otherwise one reply variant is picked at
// random and any image attachments follow it.
func (r *Router) renderKeywordReply(entry models.KeywordEntry) []models.ReplyDirective {
	extra := strings.TrimSpace(entry.Extra)
	if extra == "time" {
		stamp := r.now().In(manila).Format("Monday, January 2, 2006 3:04 PM")
		return []models.ReplyDirective{models.TextDirective("It's currently " + stamp + " here.")}
	}

	var directives []models.ReplyDirective
	variants := strings.Split(entry.Reply, "|")
	if text := strings.TrimSpace(variants[r.pick(len(variants))]); text != "" {
		directives = append(directives, models.TextDirective(text))
	}

	if extra != "" {
		for _, rawURL := range strings.Split(extra, "|") {
			if u := strings.TrimSpace(rawURL); u != "" {
				directives = append(directives, models.AttachmentDirective(u))
			}
		}
	}
	return directives
}

// containsAny reports whether any keyword occurs in the text. Containment,
// not word equality, so "bookings" and "booking please" both trigger.
func containsAny(normalized string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}
