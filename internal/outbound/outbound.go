// Package outbound paces message delivery to Messenger recipients.
//
// Each recipient gets a lazily started worker draining a FIFO queue, so
// replies to one user are strictly ordered while different users deliver in
// parallel. A queued job sends a typing indicator, waits, sends the first
// directive, then sends the rest with a short gap. Send failures are logged
// and dropped; they never propagate to webhook handling.
package outbound

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kiara-bot/kiara/internal/messenger"
	"github.com/kiara-bot/kiara/internal/models"
)

// Default pacing values, matching how a human-feeling reply cadence was tuned.
const (
	DefaultTypingDelay   = 1 * time.Second
	DefaultMessageGap    = 500 * time.Millisecond
	DefaultQueueCapacity = 64
)

// Opts holds configuration options for the scheduler.
type Opts struct {
	TypingDelay   time.Duration
	MessageGap    time.Duration
	QueueCapacity int
}

// Option defines a configuration option for the scheduler.
type Option func(*Opts)

// WithTypingDelay sets the pause between the typing indicator and the first
// message.
func WithTypingDelay(d time.Duration) Option {
	return func(o *Opts) { o.TypingDelay = d }
}

// WithMessageGap sets the pause between consecutive messages of one job.
func WithMessageGap(d time.Duration) Option {
	return func(o *Opts) { o.MessageGap = d }
}

// WithQueueCapacity sets the per-recipient queue capacity.
func WithQueueCapacity(n int) Option {
	return func(o *Opts) { o.QueueCapacity = n }
}

// job is one enqueued reply batch for a recipient.
type job struct {
	pageToken    string
	directives   []models.ReplyDirective
	initialDelay time.Duration
}

// Scheduler delivers reply directives with per-recipient ordering and pacing.
type Scheduler struct {
	sender        messenger.Sender
	typingDelay   time.Duration
	messageGap    time.Duration
	queueCapacity int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string]chan job
}

// NewScheduler creates a scheduler that sends through the given sender.
func NewScheduler(sender messenger.Sender, opts ...Option) *Scheduler {
	cfg := Opts{
		TypingDelay:   DefaultTypingDelay,
		MessageGap:    DefaultMessageGap,
		QueueCapacity: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sender:        sender,
		typingDelay:   cfg.TypingDelay,
		messageGap:    cfg.MessageGap,
		queueCapacity: cfg.QueueCapacity,
		ctx:           ctx,
		cancel:        cancel,
		queues:        make(map[string]chan job),
	}
}

// Enqueue queues a reply batch for immediate paced delivery.
func (s *Scheduler) Enqueue(recipientID, pageToken string, directives []models.ReplyDirective) {
	s.EnqueueAfter(0, recipientID, pageToken, directives)
}

// EnqueueAfter queues a reply batch whose delivery starts after delay.
// The delay holds the recipient's queue, so later batches stay ordered
// behind it.
func (s *Scheduler) EnqueueAfter(delay time.Duration, recipientID, pageToken string, directives []models.ReplyDirective) {
	if len(directives) == 0 {
		return
	}

	queue := s.queueFor(recipientID)
	select {
	case queue <- job{pageToken: pageToken, directives: directives, initialDelay: delay}:
	default:
		slog.Warn("Outbound queue full, dropping reply", "recipientID", recipientID, "directives", len(directives))
	}
}

// queueFor returns the recipient's queue, starting its worker on first use.
func (s *Scheduler) queueFor(recipientID string) chan job {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[recipientID]
	if !ok {
		queue = make(chan job, s.queueCapacity)
		s.queues[recipientID] = queue
		s.wg.Add(1)
		go s.run(recipientID, queue)
	}
	return queue
}

// run drains one recipient's queue until the scheduler stops.
func (s *Scheduler) run(recipientID string, queue chan job) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case j := <-queue:
			s.deliver(recipientID, j)
		}
	}
}

// deliver sends one job's directives with typing and pacing delays.
func (s *Scheduler) deliver(recipientID string, j job) {
	if j.initialDelay > 0 && !s.sleep(j.initialDelay) {
		return
	}

	if err := s.sender.SendTyping(s.ctx, recipientID, j.pageToken); err != nil {
		slog.Error("Typing indicator failed", "error", err, "recipientID", recipientID)
	}
	if !s.sleep(s.typingDelay) {
		return
	}

	for i, directive := range j.directives {
		if i > 0 && !s.sleep(s.messageGap) {
			return
		}
		if err := s.send(recipientID, j.pageToken, directive); err != nil {
			slog.Error("Outbound send failed", "error", err, "recipientID", recipientID, "kind", directive.Kind)
		}
	}
}

func (s *Scheduler) send(recipientID, pageToken string, directive models.ReplyDirective) error {
	switch directive.Kind {
	case models.DirectiveTemplate:
		if directive.Template == nil {
			slog.Warn("Template directive without template", "recipientID", recipientID)
			return nil
		}
		return s.sender.SendTemplate(s.ctx, recipientID, pageToken, *directive.Template)
	case models.DirectiveAttachment:
		return s.sender.SendAttachment(s.ctx, recipientID, pageToken, directive.AttachmentURL)
	default:
		return s.sender.SendText(s.ctx, recipientID, pageToken, directive.Text)
	}
}

// sleep waits for d or the scheduler stopping, whichever comes first. It
// reports false when the scheduler stopped.
func (s *Scheduler) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Stop halts delivery. Queued jobs that have not started are discarded.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Outbound scheduler stopped")
}
