package talent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
	"cvoptimizer/internal/wallet"
)

type fakePublisher struct {
	published []Submission
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, s Submission) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, s)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func sampleCV() types.CVData {
	return types.CVData{
		PersonalInfo: types.PersonalInfo{FullName: "Maria Silva", Email: "maria@example.com"},
		Skills:       []string{"Go", "SQL"},
	}
}

func newTestService(store wallet.Store, pub Publisher) *Service {
	s := NewService(config.TalentConfig{Ads: config.DefaultTalentAds()}, 3, store, pub, nil)
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	s.newID = func() string { return "sub-1" }
	return s
}

func TestCatalogDefaults(t *testing.T) {
	ads := NewCatalog(config.DefaultTalentAds()).Ads()
	require.Len(t, ads, 2)
	assert.Equal(t, "ad-1", ads[0].ID)
	assert.Equal(t, "ad-2", ads[1].ID)
	assert.True(t, ads[0].IsPromoted)
	assert.True(t, ads[1].IsPromoted)
}

func TestCatalogPromotedFirst(t *testing.T) {
	catalog := NewCatalog([]types.TalentAd{
		{ID: "plain-1"},
		{ID: "promo-1", IsPromoted: true},
		{ID: "plain-2"},
		{ID: "promo-2", IsPromoted: true},
	})
	var ids []string
	for _, ad := range catalog.Ads() {
		ids = append(ids, ad.ID)
	}
	assert.Equal(t, []string{"promo-1", "promo-2", "plain-1", "plain-2"}, ids)
}

func TestSubmit(t *testing.T) {
	store := wallet.NewMemoryStore(10)
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	submission, state, err := svc.Submit(context.Background(), "session", sampleCV())
	require.NoError(t, err)
	assert.Equal(t, 7, state.Tokens)
	assert.Equal(t, "sub-1", submission.ID)
	assert.Equal(t, "session", submission.SessionID)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "Maria Silva", pub.published[0].CV.PersonalInfo.FullName)
}

func TestSubmitInsufficientTokens(t *testing.T) {
	store := wallet.NewMemoryStore(2)
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	_, state, err := svc.Submit(context.Background(), "session", sampleCV())
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientTokens))
	assert.Equal(t, 2, state.Tokens)
	assert.Empty(t, pub.published)
}

func TestSubmitRefundsOnPublishFailure(t *testing.T) {
	store := wallet.NewMemoryStore(10)
	svc := newTestService(store, &fakePublisher{err: stderrors.New("broker down")})

	_, state, err := svc.Submit(context.Background(), "session", sampleCV())
	assert.True(t, errors.HasCode(err, errors.ErrCodePublishFailed))
	assert.Equal(t, 10, state.Tokens)
}

func TestSubmitRejectsEmptyCV(t *testing.T) {
	store := wallet.NewMemoryStore(10)
	svc := newTestService(store, &fakePublisher{})

	_, _, err := svc.Submit(context.Background(), "session", types.CVData{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))

	state, err := store.Get(context.Background(), "session")
	require.NoError(t, err)
	assert.Equal(t, 10, state.Tokens)
}

type fakeChannel struct {
	declared  []string
	bound     []string
	exchange  string
	key       string
	published []amqp.Publishing
	err       error
	closed    bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if durable {
		f.declared = append(f.declared, name)
	}
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.bound = append(f.bound, exchange+":"+name+":"+key)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange, f.key = exchange, key
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherDefaultExchange(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, config.AMQPConfig{Queue: "talent.submissions", RoutingKey: "ignored"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"talent.submissions"}, ch.declared)
	assert.Empty(t, ch.bound)

	s := Submission{ID: "sub-1", SessionID: "s", CV: sampleCV(), SubmittedAt: time.Now().UTC()}
	require.NoError(t, p.Publish(context.Background(), s))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "", ch.exchange)
	assert.Equal(t, "talent.submissions", ch.key)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "sub-1", msg.MessageId)

	var decoded Submission
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "Maria Silva", decoded.CV.PersonalInfo.FullName)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisherNamedExchange(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, config.AMQPConfig{Exchange: "talent", Queue: "q", RoutingKey: "talent.new"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"talent:q:talent.new"}, ch.bound)

	require.NoError(t, p.Publish(context.Background(), Submission{ID: "x"}))
	assert.Equal(t, "talent", ch.exchange)
	assert.Equal(t, "talent.new", ch.key)
}

func TestAMQPPublisherPublishError(t *testing.T) {
	ch := &fakeChannel{err: stderrors.New("channel closed")}
	p, err := newAMQPPublisher(ch, config.AMQPConfig{Queue: "q"}, nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), Submission{ID: "x"})
	assert.True(t, errors.HasCode(err, errors.ErrCodePublishFailed))
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(config.TalentConfig{Publisher: "log"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), Submission{ID: "x"}))

	_, err = NewPublisher(config.TalentConfig{Publisher: "kafka"}, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))

	_, err = NewPublisher(config.TalentConfig{Publisher: "amqp"}, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
}
