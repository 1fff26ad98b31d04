package navigation_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/mocks"
	"github.com/xkilldash9x/lancet-cli/internal/navigation"
)

const bookURL = "https://webook.com/en/zones/suwaidi-park-rs25/book"

func newGuard(t *testing.T) (*navigation.Guard, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	cfg := navigation.GuardConfig{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
		PollInterval:   5 * time.Millisecond,
	}
	return navigation.NewGuard(zap.New(core), cfg), logs
}

func TestEnsureHealthy_RecoversAfterTwoReloads(t *testing.T) {
	t.Parallel()
	guard, logs := newGuard(t)
	page := mocks.NewFakePage("p", "about:blank", "Suwaidi Park")
	page.ScriptStatuses(bookURL, 404, 404, 200)

	ok, err := guard.EnsureHealthy(context.Background(), page, bookURL, navigation.DefaultTransforms(), 3)
	require.NoError(t, err)
	assert.True(t, ok)

	reloads := logs.FilterMessage("Reloading page").All()
	require.Len(t, reloads, 2)
	assert.Equal(t, int64(1), reloads[0].ContextMap()["attempt"])
	assert.Equal(t, int64(2), reloads[1].ContextMap()["attempt"])
	assert.Equal(t, 2, page.Count(mocks.EventReload, ""))
	assert.Zero(t, logs.FilterMessage("Trying alternate URL").Len())
}

func TestEnsureHealthy_FallsBackToAlternateURL(t *testing.T) {
	t.Parallel()
	guard, logs := newGuard(t)
	page := mocks.NewFakePage("p", "about:blank", "Suwaidi Park")
	page.ScriptStatuses(bookURL, 404, 404, 404)
	stripped := "https://webook.com/zones/suwaidi-park-rs25/book"
	page.ScriptStatuses(stripped, 404)

	ok, err := guard.EnsureHealthy(context.Background(), page, bookURL, navigation.DefaultTransforms(), 2)
	require.NoError(t, err)
	assert.True(t, ok)

	alternates := logs.FilterMessage("Trying alternate URL").All()
	require.Len(t, alternates, 2)
	assert.Equal(t, stripped, alternates[0].ContextMap()["url"])
	assert.Equal(t, "https://webook.com/ar/zones/suwaidi-park-rs25/book", alternates[1].ContextMap()["url"])

	url, err := page.URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://webook.com/ar/zones/suwaidi-park-rs25/book", url)
}

func TestEnsureHealthy_Exhausted(t *testing.T) {
	t.Parallel()
	guard, _ := newGuard(t)
	page := mocks.NewFakePage("p", "about:blank", "Suwaidi Park")
	page.DefaultStatus = 404

	ok, err := guard.EnsureHealthy(context.Background(), page, bookURL, navigation.DefaultTransforms(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, page.Count(mocks.EventReload, ""))
	// The primary load plus the two alternates that apply to an /en/ URL.
	assert.Equal(t, 3, page.Count(mocks.EventNavigate, ""))
}

func TestEnsureHealthy_ContextEnds(t *testing.T) {
	t.Parallel()
	guard, _ := newGuard(t)
	page := mocks.NewFakePage("p", "about:blank", "t")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := guard.EnsureHealthy(ctx, page, bookURL, nil, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()
	guard, _ := newGuard(t)
	ctx := context.Background()

	t.Run("Status", func(t *testing.T) {
		page := mocks.NewFakePage("p", "u", "Fine")
		nf, err := guard.IsNotFound(ctx, page, 500)
		require.NoError(t, err)
		assert.True(t, nf)
	})

	t.Run("Title marker", func(t *testing.T) {
		page := mocks.NewFakePage("p", "u", "Oops - Page Not Found")
		nf, err := guard.IsNotFound(ctx, page, 200)
		require.NoError(t, err)
		assert.True(t, nf)
	})

	t.Run("Visible Arabic heading", func(t *testing.T) {
		page := mocks.NewFakePage("p", "u", "ويبوك").Add(
			&mocks.FakeNode{ID: "h", Selectors: []string{"h1"}, Text: "الصفحة غير موجودة"},
		)
		nf, err := guard.IsNotFound(ctx, page, 200)
		require.NoError(t, err)
		assert.True(t, nf)
	})

	t.Run("Hidden heading ignored", func(t *testing.T) {
		page := mocks.NewFakePage("p", "u", "Suwaidi Park").Add(
			&mocks.FakeNode{ID: "h", Selectors: []string{"h1"}, Text: "Page not found", Hidden: true},
		)
		nf, err := guard.IsNotFound(ctx, page, 200)
		require.NoError(t, err)
		assert.False(t, nf)
	})

	t.Run("Number containing 404 is not a marker", func(t *testing.T) {
		page := mocks.NewFakePage("p", "u", "Tickets from 14045 SAR")
		nf, err := guard.IsNotFound(ctx, page, 200)
		require.NoError(t, err)
		assert.False(t, nf)
	})
}

func TestTransforms(t *testing.T) {
	t.Parallel()

	alt, ok := navigation.StripLocaleSegment("https://webook.com/ar-sa/zones/x?y=1")
	require.True(t, ok)
	assert.Equal(t, "https://webook.com/zones/x?y=1", alt)

	_, ok = navigation.StripLocaleSegment("https://webook.com/zones/x")
	assert.False(t, ok)

	alt, ok = navigation.SwapLocale("en", "ar")("https://webook.com/en/zones/x")
	require.True(t, ok)
	assert.Equal(t, "https://webook.com/ar/zones/x", alt)

	_, ok = navigation.SwapLocale("en", "ar")("https://webook.com/ar/zones/x")
	assert.False(t, ok)
}

func TestFirstOf(t *testing.T) {
	block := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	after := func(d time.Duration, v string) navigation.Waiter[string] {
		return func(ctx context.Context) (string, error) {
			select {
			case <-time.After(d):
				return v, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	fail := func(ctx context.Context) (string, error) { return "", errors.New("signal unavailable") }

	t.Run("First success wins and losers exit", func(t *testing.T) {
		v, idx, err := navigation.FirstOf(context.Background(), block, after(10*time.Millisecond, "popup"), fail)
		require.NoError(t, err)
		assert.Equal(t, "popup", v)
		assert.Equal(t, 1, idx)
	})

	t.Run("Timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, idx, err := navigation.FirstOf(ctx, block, block)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, -1, idx)
	})

	t.Run("All fail", func(t *testing.T) {
		_, _, err := navigation.FirstOf(context.Background(), fail, fail)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signal unavailable")
	})

	t.Run("No waiters", func(t *testing.T) {
		_, _, err := navigation.FirstOf[string](context.Background())
		assert.Error(t, err)
	})
}

func TestResolveNavigationTarget(t *testing.T) {
	guard, _ := newGuard(t)
	opts := navigation.TargetOptions{Budget: 300 * time.Millisecond}

	t.Run("New browsing context", func(t *testing.T) {
		b := mocks.NewFakeBrowser()
		primary := b.Primary()
		target, err := guard.ResolveNavigationTarget(context.Background(), b, primary, func(ctx context.Context) error {
			b.OpenPage("https://webook.com/en/events/suwaidi", "Suwaidi Park")
			return nil
		}, opts)
		require.NoError(t, err)
		assert.True(t, target.NewContext)
		assert.NotEqual(t, primary.ID(), target.Page.ID())
	})

	t.Run("Same context transition", func(t *testing.T) {
		b := mocks.NewFakeBrowser()
		primary := b.Primary()
		o := opts
		o.URLPattern = regexp.MustCompile(`/events/`)
		target, err := guard.ResolveNavigationTarget(context.Background(), b, primary, func(ctx context.Context) error {
			go func() {
				time.Sleep(20 * time.Millisecond)
				primary.SetURL("https://webook.com/en/events/suwaidi")
			}()
			return nil
		}, o)
		require.NoError(t, err)
		assert.False(t, target.NewContext)
		assert.Equal(t, primary.ID(), target.Page.ID())
	})

	t.Run("Ambiguous", func(t *testing.T) {
		b := mocks.NewFakeBrowser()
		_, err := guard.ResolveNavigationTarget(context.Background(), b, b.Primary(), func(ctx context.Context) error {
			return nil
		}, navigation.TargetOptions{Budget: 40 * time.Millisecond})
		require.Error(t, err)
		assert.Equal(t, schemas.ErrorKindAmbiguousNavigation, schemas.KindOf(err))
	})

	t.Run("Trigger failure", func(t *testing.T) {
		b := mocks.NewFakeBrowser()
		_, err := guard.ResolveNavigationTarget(context.Background(), b, b.Primary(), func(ctx context.Context) error {
			return errors.New("link not clickable")
		}, opts)
		assert.EqualError(t, err, "link not clickable")
	})
}
