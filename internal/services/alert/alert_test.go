package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testAlert() Alert {
	return Alert{
		Severity: SeverityCritical,
		Title:    "unprotected position",
		Message:  "stop-loss failed",
		Fields:   map[string]string{"entry_id": "e1"},
		Time:     time.Unix(1700000000, 0).UTC(),
	}
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), testAlert())
	require.NoError(t, err)
	assert.Equal(t, "unprotected position", got.Title)
	assert.Equal(t, "e1", got.Fields["entry_id"])
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	require.NoError(t, NewLogNotifier(zap.New(core)).Notify(context.Background(), testAlert()))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "unprotected position", entries[0].Message)
	assert.Equal(t, true, entries[0].ContextMap()["alert"])
	assert.Equal(t, "e1", entries[0].ContextMap()["entry_id"])
}

type failing struct{ calls int }

func (f *failing) Notify(context.Context, Alert) error {
	f.calls++
	return errors.New("down")
}

func TestMulti_NotifiesAllAndReturnsFirstError(t *testing.T) {
	a, b := &failing{}, &failing{}
	err := Multi{a, nil, b}.Notify(context.Background(), testAlert())
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
