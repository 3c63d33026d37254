package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockModel struct {
	mock.Mock
	name string
}

func (m *mockModel) Send(ctx context.Context, systemContext string, history []Message, message string) (string, error) {
	args := m.Called(ctx, systemContext, history, message)
	return args.String(0), args.Error(1)
}

func (m *mockModel) Provider() string {
	return m.name
}

func TestFailover_FirstSuccessWins(t *testing.T) {
	primary := &mockModel{name: "gemini"}
	secondary := &mockModel{name: "openai"}

	primary.On("Send", mock.Anything, "system", mock.Anything, "hello").Return("hi", nil)

	f := NewFailover([]Candidate{
		{Name: "secondary", Priority: 2, Model: secondary},
		{Name: "primary", Priority: 1, Model: primary},
	})

	reply, err := f.Send(context.Background(), "system", nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
	assert.Equal(t, "gemini", f.Provider())

	primary.AssertExpectations(t)
	secondary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFailover_FallsBackOnError(t *testing.T) {
	primary := &mockModel{name: "gemini"}
	secondary := &mockModel{name: "openai"}

	primary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))
	secondary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fallback", nil)

	f := NewFailover([]Candidate{
		{Priority: 1, Model: primary},
		{Priority: 2, Model: secondary},
	})

	reply, err := f.Send(context.Background(), "", nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, "fallback", reply)
}

func TestFailover_AllFail(t *testing.T) {
	primary := &mockModel{name: "gemini"}
	primary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", ErrEmptyResponse)

	f := NewFailover([]Candidate{{Model: primary}})

	_, err := f.Send(context.Background(), "", nil, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestFailover_SkipsCoolingDownCandidate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	primary := &mockModel{name: "gemini"}
	secondary := &mockModel{name: "openai"}

	primary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom")).Once()
	secondary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	f := NewFailover([]Candidate{
		{Priority: 1, Model: primary},
		{Priority: 2, Model: secondary},
	}, WithCooldown(time.Minute), WithFailoverClock(clock))

	_, err := f.Send(context.Background(), "", nil, "one")
	require.NoError(t, err)

	// Primary is cooling down, so only the secondary is called.
	_, err = f.Send(context.Background(), "", nil, "two")
	require.NoError(t, err)

	primary.AssertNumberOfCalls(t, "Send", 1)
	secondary.AssertNumberOfCalls(t, "Send", 2)

	// After the cooldown the primary is tried again.
	now = now.Add(2 * time.Minute)
	primary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("back", nil)

	reply, err := f.Send(context.Background(), "", nil, "three")
	require.NoError(t, err)
	assert.Equal(t, "back", reply)
}

func TestFailover_AllCoolingDownStillTries(t *testing.T) {
	primary := &mockModel{name: "gemini"}
	primary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom")).Once()
	primary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	f := NewFailover([]Candidate{{Model: primary}}, WithCooldown(time.Hour))

	_, err := f.Send(context.Background(), "", nil, "one")
	require.Error(t, err)

	reply, err := f.Send(context.Background(), "", nil, "two")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestFailover_StopsOnCancelledContext(t *testing.T) {
	primary := &mockModel{name: "gemini"}
	secondary := &mockModel{name: "openai"}

	ctx, cancel := context.WithCancel(context.Background())
	primary.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	f := NewFailover([]Candidate{
		{Priority: 1, Model: primary},
		{Priority: 2, Model: secondary},
	})

	_, err := f.Send(ctx, "", nil, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	secondary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFailover_NoCandidates(t *testing.T) {
	f := NewFailover(nil)

	_, err := f.Send(context.Background(), "", nil, "hello")
	assert.Error(t, err)
	assert.Equal(t, "none", f.Provider())
}
