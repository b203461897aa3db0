package auth

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListener(t *testing.T) *CallbackListener {
	t.Helper()
	l, err := NewCallbackListener("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func callbackURL(l *CallbackListener, query string) string {
	return fmt.Sprintf("http://%s/oauth/callback?%s", l.Addr(), query)
}

func TestListenerDeliversCode(t *testing.T) {
	l := newTestListener(t)

	resp, err := http.Get(callbackURL(l, "code=test-auth-code"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Authorization successful")

	select {
	case res := <-l.Result():
		require.NoError(t, res.Err)
		assert.Equal(t, "test-auth-code", res.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("no callback result delivered")
	}
}

func TestListenerDeliversProviderError(t *testing.T) {
	l := newTestListener(t)

	resp, err := http.Get(callbackURL(l, "error=access_denied"))
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case res := <-l.Result():
		require.Error(t, res.Err)
		var authErr *AuthorizationError
		require.True(t, errors.As(res.Err, &authErr))
		assert.Equal(t, "access_denied", authErr.Reason)
		assert.Empty(t, res.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("no callback result delivered")
	}
}

func TestListenerRejectsMalformedCallback(t *testing.T) {
	l := newTestListener(t)

	resp, err := http.Get(callbackURL(l, "state=nothing-useful"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	select {
	case res := <-l.Result():
		assert.ErrorIs(t, res.Err, ErrInvalidCallback)
	case <-time.After(2 * time.Second):
		t.Fatal("no callback result delivered")
	}
}

func TestListenerServesExactlyOneRequest(t *testing.T) {
	l := newTestListener(t)

	resp, err := http.Get(callbackURL(l, "code=first"))
	require.NoError(t, err)
	resp.Body.Close()

	res := <-l.Result()
	require.NoError(t, res.Err)
	assert.Equal(t, "first", res.Code)

	// The listener tears itself down after the first delivery; once shutdown
	// completes, further connections must be refused.
	require.Eventually(t, func() bool {
		second, err := http.Get(callbackURL(l, "code=second"))
		if err != nil {
			return true
		}
		second.Body.Close()
		return false
	}, 3*time.Second, 50*time.Millisecond)

	select {
	case extra := <-l.Result():
		t.Fatalf("unexpected second result: %+v", extra)
	default:
	}
}

func TestListenerRefusesRequestsAfterDelivery(t *testing.T) {
	l := newTestListener(t)

	resp, err := http.Get(callbackURL(l, "code=first"))
	require.NoError(t, err)
	resp.Body.Close()

	res := <-l.Result()
	require.NoError(t, res.Err)

	// A redirect racing the teardown either finds the port closed or gets an
	// explicit refusal; it must never see a second success page.
	second, err := http.Get(callbackURL(l, "code=second"))
	if err != nil {
		return
	}
	defer second.Body.Close()

	body, err := io.ReadAll(second.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, second.StatusCode)
	assert.NotContains(t, string(body), "Authorization successful")
}

func TestListenerBindConflict(t *testing.T) {
	l := newTestListener(t)

	_, err := NewCallbackListener(l.Addr())
	require.Error(t, err)

	var lisErr *ListenerError
	require.True(t, errors.As(err, &lisErr))
	assert.Equal(t, l.Addr(), lisErr.Addr)
}
