package webtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/authsvc/inmem"
	"github.com/ichigozero/todokit/authsvc/pkg/authendpoint"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
	"github.com/ichigozero/todokit/tasksvc"
	taskinmem "github.com/ichigozero/todokit/tasksvc/inmem"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	userinmem "github.com/ichigozero/todokit/usersvc/inmem"
	"github.com/ichigozero/todokit/usersvc/pkg/userservice"
	"github.com/ichigozero/todokit/websvc"
	"github.com/ichigozero/todokit/websvc/session"
	"github.com/ichigozero/todokit/websvc/taskstore"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	user      websvc.Principal
	err       error
	signedOut int
}

func (f *fakeProvider) BeginAuth(w http.ResponseWriter, r *http.Request, provider string) error {
	if provider != "google" {
		return websvc.ErrInvalidArgument
	}
	http.Redirect(w, r, "https://accounts.example.com/o/oauth2/auth", http.StatusTemporaryRedirect)
	return nil
}

func (f *fakeProvider) CompleteAuth(w http.ResponseWriter, r *http.Request, provider string) (websvc.Principal, error) {
	return f.user, f.err
}

func (f *fakeProvider) SignOut(w http.ResponseWriter, r *http.Request) error {
	f.signedOut++
	return nil
}

type fixture struct {
	server   *httptest.Server
	client   *http.Client
	provider *fakeProvider
	tokens   authservice.Service
	registry *session.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.NewNopLogger()
	tokens := authservice.NewBasicService(authservice.NewTokenizer(), inmem.NewMemoryClient())
	tasks := taskservice.ProxingMiddleware(authendpoint.MakeValidateEndpoint(tokens))(
		taskservice.NewBasicService(taskinmem.NewTaskRepository()),
	)
	store := taskstore.New(tasks)
	registry := session.NewRegistry(store, 0)
	provider := &fakeProvider{user: websvc.Principal{
		UID:           "alice",
		DisplayName:   "Alice",
		Email:         "alice@example.com",
		AvatarURL:     "https://example.com/alice.png",
		EmailVerified: true,
	}}

	accounts := userservice.NewBasicService(userinmem.NewUserRepository())

	server := httptest.NewServer(NewHTTPHandler(registry, store, tokens, accounts, provider, logger))
	t.Cleanup(server.Close)

	return &fixture{
		server:   server,
		client:   newClient(t),
		provider: provider,
		tokens:   tokens,
		registry: registry,
	}
}

func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *fixture) do(t *testing.T, c *http.Client, method, path string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (f *fixture) signIn(t *testing.T, c *http.Client) {
	t.Helper()
	resp := f.do(t, c, "GET", "/auth/google/callback?code=abc&state=xyz", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestLanding(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.client, "GET", "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var landing landingResponse
	decode(t, resp, &landing)
	assert.False(t, landing.Loading)
	assert.Equal(t, "/auth/google", landing.SignIn)

	f.signIn(t, f.client)

	resp = f.do(t, f.client, "GET", "/", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestLandingWhileResolving(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.client, "GET", "/auth/google", nil)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "accounts.example.com")

	resp = f.do(t, f.client, "GET", "/", nil)
	var landing landingResponse
	decode(t, resp, &landing)
	assert.True(t, landing.Loading)

	resp = f.do(t, f.client, "GET", "/", nil)
	landing = landingResponse{}
	decode(t, resp, &landing)
	assert.False(t, landing.Loading)
	assert.Equal(t, "/auth/google", landing.SignIn)
}

func TestBeginAuthUnknownProvider(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.client, "GET", "/auth/myspace", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCallbackFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("access_denied")

	resp := f.do(t, f.client, "GET", "/auth/google/callback", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = f.do(t, f.client, "GET", "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestGuards(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.client, "GET", "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	for _, r := range []struct{ method, path string }{
		{"GET", "/tasks"},
		{"POST", "/tasks"},
		{"PUT", "/tasks/1"},
		{"PUT", "/tasks/1/star"},
		{"DELETE", "/tasks/1"},
	} {
		resp := f.do(t, f.client, r.method, r.path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, r.method+" "+r.path)
	}
}

func TestDashboardAndMutations(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, f.client)

	resp := f.do(t, f.client, "GET", "/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash dashboardResponse
	decode(t, resp, &dash)
	require.NotNil(t, dash.Account.MemberSince)
	dash.Account.MemberSince = nil
	assert.Equal(t, accountSummary{
		DisplayName:   "Alice",
		Email:         "alice@example.com",
		AvatarURL:     "https://example.com/alice.png",
		EmailVerified: true,
		TaskCount:     0,
	}, dash.Account)
	assert.Empty(t, dash.View.Tasks)
	assert.Equal(t, "name", dash.View.Sort)
	assert.NotEmpty(t, dash.View.DefaultDeadline)

	resp = f.do(t, f.client, "POST", "/tasks", taskRequest{Text: "Write report", Deadline: "2024-03-01T12:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, f.client, "POST", "/tasks", taskRequest{Text: "Eat lunch", Deadline: "2024-03-01T12:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view listView
	decode(t, resp, &view)
	require.Len(t, view.Tasks, 2)
	assert.Equal(t, "Eat lunch", view.Tasks[0].Text)
	assert.Equal(t, "Write report", view.Tasks[1].Text)
	assert.NotEmpty(t, view.Tasks[0].Due)

	resp = f.do(t, f.client, "POST", "/tasks", taskRequest{Text: "", Deadline: "2024-03-01T12:00"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	id := view.Tasks[0].ID
	resp = f.do(t, f.client, "PUT", "/tasks/"+id+"/star", starRequest{Starred: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = listView{}
	decode(t, resp, &view)
	assert.True(t, view.Tasks[0].Starred)

	resp = f.do(t, f.client, "PUT", "/tasks/"+id, taskRequest{Text: "Eat dinner", Deadline: "2024-03-01T19:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, f.client, "PUT", "/tasks/missing", taskRequest{Text: "x", Deadline: "2024-03-01T19:00"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, f.client, "GET", "/tasks?q=EAT", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = listView{}
	decode(t, resp, &view)
	require.Len(t, view.Tasks, 1)
	assert.Equal(t, "Eat dinner", view.Tasks[0].Text)
	assert.Equal(t, "EAT", view.Search)

	resp = f.do(t, f.client, "GET", "/tasks?sort=priority", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, f.client, "DELETE", "/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = listView{}
	decode(t, resp, &view)
	require.Len(t, view.Tasks, 1)
	assert.Equal(t, "Write report", view.Tasks[0].Text)

	resp = f.do(t, f.client, "DELETE", "/tasks/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, f.client)

	resp := f.do(t, f.client, "POST", "/tasks", taskRequest{Text: "Eat lunch", Deadline: "2024-03-01T12:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f.provider.user = websvc.Principal{UID: "bob", DisplayName: "Bob"}
	other := newClient(t)
	f.signIn(t, other)

	resp = f.do(t, other, "GET", "/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash dashboardResponse
	decode(t, resp, &dash)
	assert.Equal(t, "Bob", dash.Account.DisplayName)
	assert.Empty(t, dash.View.Tasks)
	assert.Equal(t, 2, f.registry.Len())
}

// sessionOf returns the server side session of the browser behind c.
func (f *fixture) sessionOf(t *testing.T, c *http.Client) *session.Session {
	t.Helper()

	u, err := url.Parse(f.server.URL)
	require.NoError(t, err)
	req := &http.Request{Header: http.Header{}}
	for _, cookie := range c.Jar.Cookies(u) {
		req.AddCookie(cookie)
	}
	id, ok := defaultCookieCodec().read(req)
	require.True(t, ok)
	sess, ok := f.registry.Get(id)
	require.True(t, ok)
	return sess
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, f.client)

	accessUUID := f.sessionOf(t, f.client).Identity.Principal().AccessUUID

	v, err := f.tokens.Validate(context.Background(), accessUUID)
	require.NoError(t, err)
	require.True(t, v)

	resp := f.do(t, f.client, "POST", "/logout", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 1, f.provider.signedOut)
	assert.Equal(t, 0, f.registry.Len())

	v, err = f.tokens.Validate(context.Background(), accessUUID)
	require.NoError(t, err)
	assert.False(t, v, "token is revoked")

	resp = f.do(t, f.client, "GET", "/tasks", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTamperedCookie(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest("GET", f.server.URL+"/tasks", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "forged"})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPrincipalOf(t *testing.T) {
	p := principalOf(goth.User{
		UserID:    "123",
		Name:      "Alice",
		Email:     "alice@example.com",
		AvatarURL: "https://example.com/alice.png",
		RawData:   map[string]interface{}{"verified_email": true},
	})
	assert.Equal(t, websvc.Principal{
		UID:           "123",
		DisplayName:   "Alice",
		Email:         "alice@example.com",
		AvatarURL:     "https://example.com/alice.png",
		EmailVerified: true,
	}, p)

	p = principalOf(goth.User{UserID: "456", NickName: "bob"})
	assert.Equal(t, "bob", p.DisplayName)
	assert.False(t, p.EmailVerified)
}

func TestErr2code(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, err2code(websvc.ErrUnauthenticated))
	assert.Equal(t, http.StatusNotFound, err2code(websvc.ErrTaskNotFound))
	assert.Equal(t, http.StatusBadRequest, err2code(websvc.ErrInvalidArgument))
	assert.Equal(t, http.StatusInternalServerError, err2code(tasksvc.ErrWrite))
}

func TestSignInAgainReplacesPrincipal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, f.client)

	resp := f.do(t, f.client, "POST", "/tasks", taskRequest{Text: "alice secret", Deadline: "2024-03-01T12:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	aliceUUID := f.sessionOf(t, f.client).Identity.Principal().AccessUUID

	f.provider.user = websvc.Principal{UID: "bob", DisplayName: "Bob"}
	f.signIn(t, f.client)

	resp = f.do(t, f.client, "GET", "/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view listView
	decode(t, resp, &view)
	assert.Empty(t, view.Tasks, "bob must not see alice's tasks")

	v, err := f.tokens.Validate(ctx, aliceUUID)
	require.NoError(t, err)
	assert.False(t, v, "alice's token is revoked")

	resp = f.do(t, f.client, "GET", "/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash dashboardResponse
	decode(t, resp, &dash)
	assert.Equal(t, "Bob", dash.Account.DisplayName)
	assert.Empty(t, dash.View.Tasks)
	assert.Equal(t, 1, f.registry.Len())
}

func TestFailedSignInDropsPreviousPrincipal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, f.client)

	resp := f.do(t, f.client, "POST", "/tasks", taskRequest{Text: "Eat lunch", Deadline: "2024-03-01T12:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := f.sessionOf(t, f.client)
	aliceUUID := sess.Identity.Principal().AccessUUID

	f.provider.err = errors.New("access_denied")
	resp = f.do(t, f.client, "GET", "/auth/google/callback", nil)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	assert.Nil(t, sess.Identity.Principal())
	assert.Empty(t, sess.Collection.Tasks())

	v, err := f.tokens.Validate(ctx, aliceUUID)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestRejectedTokenSignsOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, f.client)

	accessUUID := f.sessionOf(t, f.client).Identity.Principal().AccessUUID
	_, err := f.tokens.Logout(ctx, accessUUID)
	require.NoError(t, err)

	resp := f.do(t, f.client, "POST", "/tasks", taskRequest{Text: "Eat lunch", Deadline: "2024-03-01T12:00"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, f.client, "GET", "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	f.signIn(t, f.client)
	_, err = f.tokens.Logout(ctx, f.sessionOf(t, f.client).Identity.Principal().AccessUUID)
	require.NoError(t, err)

	resp = f.do(t, f.client, "GET", "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Nil(t, f.sessionOf(t, f.client).Identity.Principal())
}

func TestLandingKeepsNoSessionForVisitors(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		resp := f.do(t, newClient(t), "GET", "/", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 0, f.registry.Len())
}
