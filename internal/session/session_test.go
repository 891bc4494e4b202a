package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/identity"
)

func TestLifecycle(t *testing.T) {
	s := New("s1")
	assert.Equal(t, StatusUninitialized, s.State().Status)

	var seen []Status
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st.Status) })

	s.Begin()
	_, err := s.Credential()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	s.Resolve(&identity.User{Email: "a@b.co", IDToken: "tok"})
	cred, err := s.Credential()
	require.NoError(t, err)
	assert.Equal(t, "tok", cred)
	assert.True(t, s.State().Authenticated())

	s.Clear()
	_, err = s.Credential()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	unsubscribe()
	s.Begin()

	assert.Equal(t, []Status{StatusResolving, StatusAuthenticated, StatusAnonymous}, seen)
}

func TestResolveNilIsAnonymous(t *testing.T) {
	s := New("s1")
	s.Begin()
	s.Resolve(nil)
	assert.Equal(t, StatusAnonymous, s.State().Status)
	assert.Empty(t, s.State().User.Email)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New("s1")
	s.Resolve(&identity.User{IDToken: "tok", ExpiresAt: now.Add(time.Minute)})

	assert.False(t, s.NeedsRefresh(now, 0))
	assert.True(t, s.NeedsRefresh(now, 2*time.Minute))
}

func TestNotices(t *testing.T) {
	s := New("s1")
	s.AddNotice(NoticeSuccess, "Transaction added")
	s.AddNotice(NoticeError, "network down")

	got := s.PopNotices()
	require.Len(t, got, 2)
	assert.Equal(t, "Transaction added", got[0].Message)
	assert.Empty(t, s.PopNotices())
}

func TestTakeValue(t *testing.T) {
	s := New("s1")
	s.SetValue("oauth_state", "xyz")
	v, ok := s.TakeValue("oauth_state")
	assert.True(t, ok)
	assert.Equal(t, "xyz", v)
	_, ok = s.TakeValue("oauth_state")
	assert.False(t, ok)
}

func TestStore(t *testing.T) {
	st := NewStore(10, time.Minute)
	s := st.Create()

	got, ok := st.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	st.Delete(s.ID())
	_, ok = st.Get(s.ID())
	assert.False(t, ok)
	_, ok = st.Get("")
	assert.False(t, ok)
}
