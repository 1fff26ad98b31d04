package action_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/action"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/mocks"
)

var quick = action.Options{Retries: 3, PerTry: 100 * time.Millisecond}

func newExecutor(t *testing.T) *action.Executor {
	t.Helper()
	return action.NewExecutor(zaptest.NewLogger(t), action.NoopPacer{})
}

func element(t *testing.T, page *mocks.FakePage, selector string) browser.Element {
	t.Helper()
	els, err := page.QueryAll(context.Background(), browser.Query{Selector: selector})
	require.NoError(t, err)
	require.Len(t, els, 1)
	return els[0]
}

func TestClick_NativeSuccess(t *testing.T) {
	t.Parallel()
	page := mocks.NewFakePage("p", "u", "t").Add(mocks.Button("buy", "Buy"))

	out := newExecutor(t).Click(context.Background(), element(t, page, "button"), quick)
	assert.True(t, out.Succeeded)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, "native", out.Method)
	assert.NoError(t, out.AsError("buy"))
	assert.Equal(t, 1, page.Count(mocks.EventClick, "buy"))
}

func TestClick_FallsBackToDispatch(t *testing.T) {
	t.Parallel()
	node := mocks.Button("buy", "Buy")
	node.ClickErr = errors.New("element intercepted")
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	out := newExecutor(t).Click(context.Background(), element(t, page, "button"), quick)
	assert.True(t, out.Succeeded)
	assert.Equal(t, 1, out.Attempts, "the fallback belongs to the same attempt")
	assert.Equal(t, "dispatch", out.Method)
	assert.Equal(t, 1, page.Count(mocks.EventDispatch, "buy"))
}

func TestClick_WaitsForVisibility(t *testing.T) {
	t.Parallel()
	node := mocks.Button("slot", "16:00")
	node.HiddenProbes = 2
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	out := newExecutor(t).Click(context.Background(), element(t, page, "button"), action.Options{Retries: 1, PerTry: time.Second})
	assert.True(t, out.Succeeded)
}

func TestClick_Classification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		configure func(n *mocks.FakeNode)
		expected  action.ErrorClass
		attempts  int
	}{
		{"Hidden", func(n *mocks.FakeNode) { n.Hidden = true }, action.ClassNotVisible, 3},
		{"Disabled", func(n *mocks.FakeNode) { n.Disabled = true }, action.ClassNotEnabled, 3},
		{"Detached stops early", func(n *mocks.FakeNode) { n.DetachOnClick = true }, action.ClassDetached, 1},
		{"Both clicks fail", func(n *mocks.FakeNode) {
			n.ClickErr = errors.New("native")
			n.DispatchErr = errors.New("dispatch")
		}, action.ClassUnknown, 3},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			node := mocks.Button("target", "Go")
			tt.configure(node)
			page := mocks.NewFakePage("p", "u", "t").Add(node)

			out := newExecutor(t).Click(context.Background(), element(t, page, "button"), action.Options{Retries: 3, PerTry: 30 * time.Millisecond})
			assert.False(t, out.Succeeded)
			assert.Equal(t, tt.expected, out.LastError)
			assert.Equal(t, tt.attempts, out.Attempts)
			assert.Equal(t, schemas.ErrorKindNotInteractable, out.Kind())

			err := out.AsError("select_time")
			require.Error(t, err)
			assert.Equal(t, schemas.ErrorKindNotInteractable, schemas.KindOf(err))
		})
	}
}

func TestClick_RecoversAfterTransientFailures(t *testing.T) {
	t.Parallel()
	el := new(mocks.MockElement)
	el.On("Visible", mock.Anything).Return(true, nil)
	el.On("Enabled", mock.Anything).Return(true, nil)
	el.On("ScrollIntoView", mock.Anything).Return(browser.ErrUnsupported)
	el.On("Click", mock.Anything).Return(errors.New("covered")).Once()
	el.On("DispatchClick", mock.Anything).Return(errors.New("no handler")).Once()
	el.On("Click", mock.Anything).Return(nil).Once()

	out := newExecutor(t).Click(context.Background(), el, quick)
	assert.True(t, out.Succeeded)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, "native", out.Method)
	el.AssertExpectations(t)
}

func TestClick_RunDeadline(t *testing.T) {
	t.Parallel()
	node := mocks.Button("slow", "Go")
	node.Delay = time.Second
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := newExecutor(t).Click(ctx, element(t, page, "button"), action.Options{Retries: 5, PerTry: 10 * time.Second})
	assert.False(t, out.Succeeded)
	assert.Equal(t, schemas.ErrorKindDeadlineExceeded, out.Kind())
	assert.Equal(t, 1, out.Attempts)
}

func TestClick_PerTryTimeoutIsNotRunDeadline(t *testing.T) {
	t.Parallel()
	node := mocks.Button("slow", "Go")
	node.Delay = time.Second
	node.DispatchErr = errors.New("dispatch blocked")
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	out := newExecutor(t).Click(context.Background(), element(t, page, "button"), action.Options{Retries: 2, PerTry: 20 * time.Millisecond})
	assert.False(t, out.Succeeded)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, schemas.ErrorKindNotInteractable, out.Kind())
}

func TestClick_DispatchesAfterNativeTimeout(t *testing.T) {
	t.Parallel()
	node := mocks.Button("covered", "Book")
	node.Delay = 5 * time.Second
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	out := newExecutor(t).Click(context.Background(), element(t, page, "button"), action.Options{Retries: 2, PerTry: 100 * time.Millisecond})
	require.True(t, out.Succeeded, "native click used its share of the attempt: %v", out.Err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, "dispatch", out.Method)
	assert.Equal(t, 1, page.Count(mocks.EventDispatch, "covered"))
	assert.Zero(t, page.Count(mocks.EventClick, "covered"))
}

func TestFill_AssignsValueAfterTypingTimeout(t *testing.T) {
	t.Parallel()
	node := &mocks.FakeNode{ID: "email", Selectors: []string{"input"}, Delay: 5 * time.Second}
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	out := newExecutor(t).Fill(context.Background(), element(t, page, "input"), "a@b.sa", action.Options{Retries: 1, PerTry: 100 * time.Millisecond})
	require.True(t, out.Succeeded, out.Err)
	assert.Equal(t, "dispatch", out.Method)
	assert.Equal(t, "a@b.sa", page.Node("email").Value)
	assert.Equal(t, 1, page.Count(mocks.EventSetValue, "email"))
}

func TestFill_ClearsThenTypesPerCharacter(t *testing.T) {
	t.Parallel()
	node := &mocks.FakeNode{ID: "email", Selectors: []string{"input"}, Value: "stale@old"}
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	out := newExecutor(t).Fill(context.Background(), element(t, page, "input"), "a@b.sa", quick)
	require.True(t, out.Succeeded)
	assert.Equal(t, "native", out.Method)
	assert.Equal(t, "a@b.sa", page.Node("email").Value)

	var kinds []string
	for _, e := range page.Events() {
		if e.Kind != mocks.EventClick {
			kinds = append(kinds, e.Kind)
		}
	}
	assert.Equal(t, []string{
		mocks.EventClear,
		mocks.EventType, mocks.EventType, mocks.EventType,
		mocks.EventType, mocks.EventType, mocks.EventType,
	}, kinds)
	assert.Zero(t, page.Count(mocks.EventSetValue, ""), "bulk assignment is only a fallback")
}

func TestFill_FallsBackToValueAssignment(t *testing.T) {
	t.Parallel()
	el := new(mocks.MockElement)
	el.On("Visible", mock.Anything).Return(true, nil)
	el.On("Enabled", mock.Anything).Return(true, nil)
	el.On("ScrollIntoView", mock.Anything).Return(nil)
	el.On("Click", mock.Anything).Return(nil)
	el.On("Clear", mock.Anything).Return(nil)
	el.On("TypeRune", mock.Anything, 'S').Return(errors.New("key events blocked"))
	el.On("SetValue", mock.Anything, "Suwaidi").Return(nil)

	out := newExecutor(t).Fill(context.Background(), el, "Suwaidi", quick)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "dispatch", out.Method)
	el.AssertExpectations(t)
}

func TestPress(t *testing.T) {
	t.Parallel()
	pressed := ""
	node := &mocks.FakeNode{ID: "q", Selectors: []string{"input"}, OnPress: func(p *mocks.FakePage, key string) { pressed = key }}
	page := mocks.NewFakePage("p", "u", "t").Add(node)

	out := newExecutor(t).Press(context.Background(), element(t, page, "input"), browser.KeyEnter, quick)
	assert.True(t, out.Succeeded)
	assert.Equal(t, browser.KeyEnter, pressed)
}

func TestHumanPacer(t *testing.T) {
	t.Parallel()
	cfg := action.DefaultPacerConfig()
	cfg.Rng = rand.New(rand.NewSource(7))
	p := action.NewHumanPacer(cfg)

	for i := 0; i < 200; i++ {
		d := p.RetryDelay()
		require.GreaterOrEqual(t, d, cfg.RetryMin)
		require.LessOrEqual(t, d, cfg.RetryMax)
		require.GreaterOrEqual(t, p.KeyInterval(), 10*time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Pause(ctx), context.Canceled)
	assert.ErrorIs(t, p.KeyDelay(ctx), context.Canceled)
}

func TestHumanPacer_SpacesInteractions(t *testing.T) {
	t.Parallel()
	p := action.NewHumanPacer(action.PacerConfig{MinSpacing: 40 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Interact(context.Background()))
	}
	// The first token is immediate, the next two wait one spacing each.
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}
