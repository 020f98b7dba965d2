package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourorg/tenantonboard/internal/domain"
)

// inlineQueue runs tasks synchronously so tests can observe the outcome.
type inlineQueue struct {
	accept bool
	names  []string
	errs   []error
}

func (q *inlineQueue) Submit(name string, fn func(ctx context.Context) error) bool {
	if !q.accept {
		return false
	}
	q.names = append(q.names, name)
	q.errs = append(q.errs, fn(context.Background()))
	return true
}

type recordingNotifier struct {
	sent []domain.Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, msg domain.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestDispatchSendsOnQueue(t *testing.T) {
	q := &inlineQueue{accept: true}
	n := &recordingNotifier{}
	d := NewDispatcher(q, n, nil)

	assert.True(t, d.Dispatch(domain.Message{Recipient: "a@acme.io"}))
	assert.Equal(t, []string{"notify.email"}, q.names)
	assert.Len(t, n.sent, 1)
	assert.NoError(t, q.errs[0])
}

func TestDispatchSurfacesFailureOnlyToQueue(t *testing.T) {
	q := &inlineQueue{accept: true}
	n := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(q, n, nil)

	assert.True(t, d.Dispatch(domain.Message{Recipient: "a@acme.io"}))
	assert.EqualError(t, q.errs[0], "smtp down")
}

func TestDispatchReportsRefusal(t *testing.T) {
	d := NewDispatcher(&inlineQueue{accept: false}, &recordingNotifier{}, nil)
	assert.False(t, d.Dispatch(domain.Message{}))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Send(context.Background(), domain.Message{Recipient: "a@acme.io"}))
}
