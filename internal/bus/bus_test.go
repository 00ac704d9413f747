package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

type fakeSub struct {
	id      string
	handles bool
	panics  bool
	errs    bool
	result  *domain.ActionResult
	calls   int
}

func (f *fakeSub) ID() string { return f.id }
func (f *fakeSub) CanHandle(domain.Event) bool { return f.handles }
func (f *fakeSub) Process(domain.Event) (*domain.ActionResult, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	if f.errs {
		return nil, errors.New("fail")
	}
	return f.result, nil
}

func TestDispatchOnlyCallsMatchingSubscribers(t *testing.T) {
	b := New(logger.NewNoop(), 10)
	matching := &fakeSub{id: "a", handles: true, result: &domain.ActionResult{ActionType: "x"}}
	skipped := &fakeSub{id: "b", handles: false}
	b.Subscribe(matching)
	b.Subscribe(skipped)

	results := b.Dispatch(domain.NewEvent("1.2.3.4", domain.EventPortScan, nil))

	require.Len(t, results, 1)
	assert.Equal(t, 1, matching.calls)
	assert.Equal(t, 0, skipped.calls)
}

func TestDispatchIsolatesPanic(t *testing.T) {
	b := New(logger.NewNoop(), 10)
	bad := &fakeSub{id: "bad", handles: true, panics: true}
	good := &fakeSub{id: "good", handles: true, result: &domain.ActionResult{ActionType: "y"}}
	b.Subscribe(bad)
	b.Subscribe(good)

	results := b.Dispatch(domain.NewEvent("src", domain.EventAuthFail, nil))

	require.Len(t, results, 1)
	assert.Equal(t, "y", results[0].ActionType)
	assert.Len(t, b.SubscriberErrors(), 1)
}

func TestDispatchRecordsErrorWithoutResult(t *testing.T) {
	b := New(logger.NewNoop(), 10)
	erroring := &fakeSub{id: "e", handles: true, errs: true}
	b.Subscribe(erroring)

	results := b.Dispatch(domain.NewEvent("src", domain.EventAuthFail, nil))

	assert.Empty(t, results)
	assert.Len(t, b.SubscriberErrors(), 1)
}

func TestSubmitDropsLowestPriorityOnOverflow(t *testing.T) {
	b := New(logger.NewNoop(), 2)
	low := 1.0
	high := 9.0
	e1 := domain.NewEvent("a", domain.EventPortScan, nil)
	e1.ThreatScore = &low
	e2 := domain.NewEvent("b", domain.EventPortScan, nil)
	e2.ThreatScore = &high
	e3 := domain.NewEvent("c", domain.EventPortScan, nil)
	e3.ThreatScore = &high

	b.Submit(e1)
	b.Submit(e2)
	b.Submit(e3)

	drained := b.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, int64(1), b.Dropped())
	for _, e := range drained {
		assert.NotEqual(t, e1.ID, e.ID)
	}
}

func TestDrainReturnsNilWhenEmpty(t *testing.T) {
	b := New(logger.NewNoop(), 4)
	assert.Nil(t, b.Drain())
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	b := New(logger.NewNoop(), 4)
	s := &fakeSub{id: "a", handles: true, result: &domain.ActionResult{}}
	b.Subscribe(s)
	b.Unsubscribe("a")

	results := b.Dispatch(domain.NewEvent("src", domain.EventNetFlow, nil))
	assert.Empty(t, results)
}
