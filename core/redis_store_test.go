package core

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client, []byte("test-session-key"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.Get(req, sessionName)
	require.NoError(t, err)
	assert.True(t, sess.IsNew)

	sess.Values[sessionUserIDKey] = int64(42)
	sess.Values[sessionEmailKey] = "x@example.com"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, sess))
	require.NotEmpty(t, sess.ID)

	assert.True(t, mr.Exists(redisSessionPrefix+sess.ID))
	ttl := mr.TTL(redisSessionPrefix + sess.ID)
	assert.Equal(t, time.Duration(sessionMaxAge)*time.Second, ttl)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotContains(t, cookies[0].Value, "x@example.com")

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := store.New(next, sessionName)
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, int64(42), loaded.Values[sessionUserIDKey])
	assert.Equal(t, "x@example.com", loaded.Values[sessionEmailKey])
}

func TestRedisStoreDeleteOnNegativeMaxAge(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client, []byte("test-session-key"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, sessionName)
	require.NoError(t, err)
	sess.Values["k"] = "v"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, sess))
	cookie := rec.Result().Cookies()[0]

	sess.Options.MaxAge = -1
	rec = httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, sess))
	assert.False(t, mr.Exists(redisSessionPrefix+sess.ID))
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)

	// Replaying the old cookie yields an empty, new session.
	replay := httptest.NewRequest(http.MethodGet, "/", nil)
	replay.AddCookie(cookie)
	again, err := store.New(replay, sessionName)
	require.NoError(t, err)
	assert.True(t, again.IsNew)
	assert.Empty(t, again.ID)
	assert.Empty(t, again.Values)
}

func TestRedisStoreRejectsForgedCookie(t *testing.T) {
	_, client := newMiniRedis(t)
	store := NewRedisStore(client, []byte("test-session-key"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionName, Value: "forged"})
	sess, err := store.New(req, sessionName)
	assert.Error(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.IsNew)
}
