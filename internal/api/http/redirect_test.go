package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vadimbarashkov/shortlink-core/internal/database"
	"github.com/vadimbarashkov/shortlink-core/internal/models"
	"github.com/vadimbarashkov/shortlink-core/internal/resolver"
	"github.com/vadimbarashkov/shortlink-core/internal/session"
	"github.com/vadimbarashkov/shortlink-core/internal/visit"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type redirectStoreStub struct {
	records map[string]*models.RedirectRecord
}

func (s *redirectStoreStub) GetForRedirect(_ context.Context, slug string, _ bool) (*models.RedirectRecord, error) {
	rec, ok := s.records[slug]
	if !ok {
		return nil, database.ErrLinkNotFound
	}
	return rec, nil
}

type dispatcherStub struct {
	mu    sync.Mutex
	slugs []string
}

func (d *dispatcherStub) Dispatch(rec *models.RedirectRecord, _ visit.RequestSnapshot) {
	d.mu.Lock()
	d.slugs = append(d.slugs, rec.Slug)
	d.mu.Unlock()
}

func (d *dispatcherStub) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slugs)
}

func setupRedirectServer(t testing.TB, records map[string]*models.RedirectRecord, next http.Handler) (*httptest.Server, *http.Client, *dispatcherStub) {
	t.Helper()

	unlocks := session.NewMemoryStore()
	t.Cleanup(func() { unlocks.Close() })

	dispatcher := &dispatcherStub{}
	res := resolver.New(&redirectStoreStub{records: records}, unlocks, dispatcher, resolver.Options{}, testLogger)

	srv := httptest.NewServer(NewRedirectHandler(res, next))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return srv, client, dispatcher
}

func plainRecord(slug string) *models.RedirectRecord {
	return &models.RedirectRecord{
		ID:           1,
		Slug:         slug,
		Destination:  "https://example.com/landing",
		RedirectKind: models.RedirectPermanent,
		TrackVisits:  true,
		IsActive:     true,
	}
}

func TestRedirectHandler_Redirect(t *testing.T) {
	t.Run("permanent redirect", func(t *testing.T) {
		srv, client, dispatcher := setupRedirectServer(t, map[string]*models.RedirectRecord{
			"abc": plainRecord("abc"),
		}, nil)

		resp, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
		assert.Equal(t, "https://example.com/landing", resp.Header.Get("Location"))
		assert.Equal(t, 1, dispatcher.count())
	})

	t.Run("temporary strict redirect", func(t *testing.T) {
		rec := plainRecord("abc")
		rec.RedirectKind = models.RedirectTemporaryStrict
		srv, client, _ := setupRedirectServer(t, map[string]*models.RedirectRecord{"abc": rec}, nil)

		resp, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	})

	t.Run("rel attributes surface in the link header", func(t *testing.T) {
		rec := plainRecord("abc")
		rec.Nofollow = true
		rec.Sponsored = true
		srv, client, _ := setupRedirectServer(t, map[string]*models.RedirectRecord{"abc": rec}, nil)

		resp, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Contains(t, resp.Header.Get("Link"), `rel="nofollow sponsored"`)
	})

	t.Run("query forwarding", func(t *testing.T) {
		rec := plainRecord("abc")
		rec.ForwardQueryParams = true
		srv, client, _ := setupRedirectServer(t, map[string]*models.RedirectRecord{"abc": rec}, nil)

		resp, err := client.Get(srv.URL + "/abc?utm_source=mail")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "https://example.com/landing?utm_source=mail", resp.Header.Get("Location"))
	})

	t.Run("unknown slug falls through to next", func(t *testing.T) {
		var nextCalled bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusTeapot)
		})
		srv, client, dispatcher := setupRedirectServer(t, map[string]*models.RedirectRecord{}, next)

		resp, err := client.Get(srv.URL + "/missing")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
		assert.Zero(t, dispatcher.count())
	})

	t.Run("nested paths are never treated as slugs", func(t *testing.T) {
		var gotPath string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
		})
		srv, client, _ := setupRedirectServer(t, map[string]*models.RedirectRecord{
			"abc": plainRecord("abc"),
		}, next)

		resp, err := client.Get(srv.URL + "/abc/nested")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "/abc/nested", gotPath)
	})

	t.Run("nil next falls back to 404", func(t *testing.T) {
		srv, client, _ := setupRedirectServer(t, map[string]*models.RedirectRecord{}, nil)

		resp, err := client.Get(srv.URL + "/missing")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("inactive link is indistinguishable from a miss", func(t *testing.T) {
		rec := plainRecord("abc")
		rec.IsActive = false
		srv, client, _ := setupRedirectServer(t, map[string]*models.RedirectRecord{"abc": rec}, nil)

		resp, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("expired link is indistinguishable from a miss", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		rec := plainRecord("abc")
		rec.ExpiresAt = &past
		srv, client, _ := setupRedirectServer(t, map[string]*models.RedirectRecord{"abc": rec}, nil)

		resp, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRedirectHandler_PasswordFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.MinCost)
	require.NoError(t, err)

	records := func() map[string]*models.RedirectRecord {
		rec := plainRecord("abc")
		rec.PasswordHash = string(hash)
		return map[string]*models.RedirectRecord{"abc": rec}
	}

	t.Run("protected link shows the password form", func(t *testing.T) {
		srv, client, dispatcher := setupRedirectServer(t, records(), nil)

		resp, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, string(body), `name="password"`)
		assert.Zero(t, dispatcher.count())
	})

	t.Run("wrong password re-prompts with 401", func(t *testing.T) {
		srv, client, _ := setupRedirectServer(t, records(), nil)

		resp, err := client.PostForm(srv.URL+"/abc", url.Values{"password": {"wrong"}})
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, string(body), "incorrect")
	})

	t.Run("correct password redirects and unlocks the session", func(t *testing.T) {
		srv, client, dispatcher := setupRedirectServer(t, records(), nil)

		// Visiting first mints the session cookie the unlock is scoped to.
		first, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		first.Body.Close()

		resp, err := client.PostForm(srv.URL+"/abc", url.Values{"password": {"opensesame"}})
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
		assert.Equal(t, "https://example.com/landing", resp.Header.Get("Location"))
		assert.Equal(t, 1, dispatcher.count())

		// Same session skips the gate on the next visit.
		again, err := client.Get(srv.URL + "/abc")
		require.NoError(t, err)
		again.Body.Close()

		assert.Equal(t, http.StatusMovedPermanently, again.StatusCode)
	})

	t.Run("other methods fall through to next", func(t *testing.T) {
		var nextCalled bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
		})
		srv, client, _ := setupRedirectServer(t, records(), next)

		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/abc", strings.NewReader(""))
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.True(t, nextCalled)
	})
}
