package outbound

import (
	"testing"
	"time"

	"github.com/kiara-bot/kiara/internal/messenger"
	"github.com/kiara-bot/kiara/internal/models"
)

func newFastScheduler(sender messenger.Sender) *Scheduler {
	return NewScheduler(sender,
		WithTypingDelay(time.Millisecond),
		WithMessageGap(time.Millisecond))
}

func waitForSends(t *testing.T, mock *messenger.MockSender, want int) []messenger.SentMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		sent := mock.Sent()
		if len(sent) >= want {
			return sent
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d sends, have %d", want, len(mock.Sent()))
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestPacedDelivery(t *testing.T) {
	mock := messenger.NewMockSender()
	s := newFastScheduler(mock)
	defer s.Stop()

	s.Enqueue("user-1", "tok", []models.ReplyDirective{
		models.TextDirective("first"),
		models.AttachmentDirective("https://cdn.example.com/a.jpg"),
	})

	sent := waitForSends(t, mock, 3)
	if sent[0].Kind != "typing" {
		t.Errorf("sent[0] = %+v, want typing first", sent[0])
	}
	if sent[1].Kind != "text" || sent[1].Text != "first" {
		t.Errorf("sent[1] = %+v", sent[1])
	}
	if sent[2].Kind != "attachment" || sent[2].ImageURL != "https://cdn.example.com/a.jpg" {
		t.Errorf("sent[2] = %+v", sent[2])
	}
	if sent[1].PageToken != "tok" {
		t.Errorf("page token = %q", sent[1].PageToken)
	}
}

func TestPerRecipientOrdering(t *testing.T) {
	mock := messenger.NewMockSender()
	s := newFastScheduler(mock)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		s.Enqueue("user-1", "tok", []models.ReplyDirective{
			models.TextDirective(string(rune('a' + i))),
		})
	}

	sent := waitForSends(t, mock, 6)
	var texts []string
	for _, msg := range sent {
		if msg.Kind == "text" {
			texts = append(texts, msg.Text)
		}
	}
	if len(texts) != 3 || texts[0] != "a" || texts[1] != "b" || texts[2] != "c" {
		t.Errorf("texts = %v, want [a b c]", texts)
	}
}

func TestEnqueueAfterDelaysDelivery(t *testing.T) {
	mock := messenger.NewMockSender()
	s := newFastScheduler(mock)
	defer s.Stop()

	start := time.Now()
	s.EnqueueAfter(50*time.Millisecond, "user-1", "tok", []models.ReplyDirective{
		models.TextDirective("later"),
	})

	sent := waitForSends(t, mock, 2)
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("delivery after %v, want at least 50ms", elapsed)
	}
	if sent[1].Text != "later" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestIndependentRecipientsDeliverConcurrently(t *testing.T) {
	mock := messenger.NewMockSender()
	s := NewScheduler(mock,
		WithTypingDelay(30*time.Millisecond),
		WithMessageGap(time.Millisecond))
	defer s.Stop()

	start := time.Now()
	for _, user := range []string{"user-1", "user-2", "user-3"} {
		s.Enqueue(user, "tok", []models.ReplyDirective{models.TextDirective("hi")})
	}

	waitForSends(t, mock, 6)
	if elapsed := time.Since(start); elapsed > 80*time.Millisecond {
		t.Errorf("three recipients took %v, want roughly one typing delay", elapsed)
	}
}

func TestSendFailureDoesNotStopQueue(t *testing.T) {
	mock := messenger.NewMockSender()
	s := newFastScheduler(mock)
	defer s.Stop()

	mock.SetErr(errSentinel)
	s.Enqueue("user-1", "tok", []models.ReplyDirective{models.TextDirective("dropped")})
	time.Sleep(20 * time.Millisecond)
	mock.SetErr(nil)

	s.Enqueue("user-1", "tok", []models.ReplyDirective{models.TextDirective("delivered")})
	sent := waitForSends(t, mock, 2)
	last := sent[len(sent)-1]
	if last.Kind != "text" || last.Text != "delivered" {
		t.Errorf("queue did not recover, sent = %+v", sent)
	}
}

var errSentinel = errTest("send failed")

type errTest string

func (e errTest) Error() string { return string(e) }
