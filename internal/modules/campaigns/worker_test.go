package campaigns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wappdesk/backend/internal/config"
)

type fakeRepo struct {
	mu         sync.Mutex
	status     string
	recipients []Recipient
	sent       map[uuid.UUID]string
	failed     map[uuid.UUID]string
	completed  bool
	requeued   bool
	heartbeats int
}

func newFakeRepo(n int) *fakeRepo {
	r := &fakeRepo{
		status: StatusProcessing,
		sent:   make(map[uuid.UUID]string),
		failed: make(map[uuid.UUID]string),
	}
	for i := 0; i < n; i++ {
		r.recipients = append(r.recipients, Recipient{
			ID:     uuid.New(),
			Phone:  "52155000000" + string(rune('0'+i)),
			Status: RecipientPending,
		})
	}
	return r
}

func (r *fakeRepo) ClaimNext(string, time.Duration) (*Campaign, error) {
	return nil, ErrNoCampaign
}

func (r *fakeRepo) Heartbeat(uuid.UUID, string, time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
	return nil
}

func (r *fakeRepo) CurrentStatus(uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *fakeRepo) PendingRecipients(_ uuid.UUID, limit int) ([]Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var page []Recipient
	for _, rcpt := range r.recipients {
		if rcpt.Status == RecipientPending {
			page = append(page, rcpt)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func (r *fakeRepo) MarkSent(id uuid.UUID, waMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[id] = waMessageID
	for i := range r.recipients {
		if r.recipients[i].ID == id {
			r.recipients[i].Status = RecipientSent
		}
	}
	return nil
}

func (r *fakeRepo) MarkFailed(id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = reason
	for i := range r.recipients {
		if r.recipients[i].ID == id {
			r.recipients[i].Status = RecipientFailed
		}
	}
	return nil
}

func (r *fakeRepo) Complete(uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = true
	return nil
}

func (r *fakeRepo) Requeue(uuid.UUID, int, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requeued = true
	return nil
}

func (r *fakeRepo) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusCancelled
}

type fakeSender struct {
	mu        sync.Mutex
	templates int
	texts     int
	failPhone string
	onSend    func(sent int)
}

func (f *fakeSender) SendTemplate(_, to, _, _ string, _ []string) (string, error) {
	return f.record(to, true)
}

func (f *fakeSender) SendText(_, to, _ string) (string, error) {
	return f.record(to, false)
}

func (f *fakeSender) record(to string, template bool) (string, error) {
	f.mu.Lock()
	if to == f.failPhone {
		f.mu.Unlock()
		return "", errors.New("recipient unreachable")
	}
	if template {
		f.templates++
	} else {
		f.texts++
	}
	n := f.templates + f.texts
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(n)
	}
	return "wamid." + to, nil
}

type fakeResolver struct {
	id  string
	err error
}

func (f *fakeResolver) PhoneNumberID(uuid.UUID) (string, error) {
	return f.id, f.err
}

func testWorker(repo JobRepository, sender Sender, resolver PhoneNumberResolver) *Worker {
	return NewWorker(repo, sender, resolver, &config.Config{
		CampaignWorkers:       1,
		CampaignSendInterval:  0,
		CampaignLeaseDuration: time.Minute,
		CampaignMaxAttempts:   3,
	})
}

func templateCampaign() *Campaign {
	return &Campaign{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		TemplateName: "promo_august",
		LanguageCode: "es_MX",
		Status:       StatusProcessing,
	}
}

func TestWorkerProcessSendsAllRecipients(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(4)
	sender := &fakeSender{}
	w := testWorker(repo, sender, &fakeResolver{id: "waba-1"})

	if err := w.process(context.Background(), "w0", templateCampaign()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(repo.sent) != 4 {
		t.Errorf("sent %d, want 4", len(repo.sent))
	}
	if !repo.completed {
		t.Errorf("campaign not completed")
	}
	if sender.templates != 4 {
		t.Errorf("templates sent = %d, want 4", sender.templates)
	}
	for _, id := range repo.sent {
		if id == "" {
			t.Errorf("recipient stored without a message ID")
		}
	}
}

func TestWorkerProcessTextBody(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(2)
	sender := &fakeSender{}
	w := testWorker(repo, sender, &fakeResolver{id: "waba-1"})

	campaign := templateCampaign()
	campaign.TemplateName = ""
	campaign.Body = "Hola!"

	if err := w.process(context.Background(), "w0", campaign); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sender.texts != 2 || sender.templates != 0 {
		t.Errorf("texts=%d templates=%d, want 2/0", sender.texts, sender.templates)
	}
}

func TestWorkerProcessRecipientFailureContinues(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(3)
	sender := &fakeSender{failPhone: repo.recipients[1].Phone}
	w := testWorker(repo, sender, &fakeResolver{id: "waba-1"})

	if err := w.process(context.Background(), "w0", templateCampaign()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(repo.sent) != 2 {
		t.Errorf("sent %d, want 2", len(repo.sent))
	}
	if len(repo.failed) != 1 {
		t.Errorf("failed %d, want 1", len(repo.failed))
	}
	if !repo.completed {
		t.Errorf("campaign should still complete after a recipient failure")
	}
}

func TestWorkerProcessCancelStopsMidRun(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(10)
	sender := &fakeSender{}
	sender.onSend = func(sent int) {
		if sent == 3 {
			repo.cancel()
		}
	}
	w := testWorker(repo, sender, &fakeResolver{id: "waba-1"})
	// Chunk of 1 so cancellation is observed between every send.
	w.chunk = 1

	if err := w.process(context.Background(), "w0", templateCampaign()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(repo.sent) != 3 {
		t.Errorf("sent %d after cancel at 3, want exactly 3", len(repo.sent))
	}
	if repo.completed {
		t.Errorf("cancelled campaign must not be marked completed")
	}
}

func TestWorkerProcessResolverError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(2)
	w := testWorker(repo, &fakeSender{}, &fakeResolver{err: ErrNoSenderNumber})

	err := w.process(context.Background(), "w0", templateCampaign())
	if err == nil {
		t.Fatal("process should fail without a sender number")
	}
	if !errors.Is(err, ErrNoSenderNumber) {
		t.Errorf("err = %v, want ErrNoSenderNumber", err)
	}
	if len(repo.sent) != 0 {
		t.Errorf("nothing should be sent, got %d", len(repo.sent))
	}
}
