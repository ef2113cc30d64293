// Package webtransport is the browser facing HTTP shell: sign-in through the
// identity provider, the guarded dashboard, and the task mutation routes.
package webtransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/usersvc"
	"github.com/ichigozero/todokit/usersvc/pkg/userservice"
	"github.com/ichigozero/todokit/websvc"
	"github.com/ichigozero/todokit/websvc/pkg/webservice"
	"github.com/ichigozero/todokit/websvc/session"
	"github.com/ichigozero/todokit/websvc/taskstore"
	"github.com/ichigozero/todokit/websvc/tasklist"
)

type server struct {
	registry *session.Registry
	store    taskstore.Store
	tokens   authservice.Service
	accounts userservice.Service
	provider IdentityProvider
	cookies  cookieCodec
	logger   log.Logger
	now      func() time.Time
}

// NewHTTPHandler mounts the web routes. tokens mints and revokes the access
// tokens the task service accepts; accounts records every sign-in.
func NewHTTPHandler(
	registry *session.Registry,
	store taskstore.Store,
	tokens authservice.Service,
	accounts userservice.Service,
	provider IdentityProvider,
	logger log.Logger,
) http.Handler {
	s := &server{
		registry: registry,
		store:    store,
		tokens:   tokens,
		accounts: accounts,
		provider: provider,
		cookies:  defaultCookieCodec(),
		logger:   logger,
		now:      time.Now,
	}
	return s.routes()
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()

	r.Methods("GET").Path("/").HandlerFunc(s.landing)
	r.Methods("GET").Path("/auth/{provider}").HandlerFunc(s.beginAuth)
	r.Methods("GET").Path("/auth/{provider}/callback").HandlerFunc(s.completeAuth)
	r.Methods("POST").Path("/logout").HandlerFunc(s.logout)
	r.Methods("GET").Path("/dashboard").HandlerFunc(s.dashboard)
	r.Methods("GET").Path("/tasks").HandlerFunc(s.signedIn(s.tasks))
	r.Methods("POST").Path("/tasks").HandlerFunc(s.signedIn(s.addTask))
	r.Methods("PUT").Path("/tasks/{id}").HandlerFunc(s.signedIn(s.updateTask))
	r.Methods("PUT").Path("/tasks/{id}/star").HandlerFunc(s.signedIn(s.toggleStar))
	r.Methods("DELETE").Path("/tasks/{id}").HandlerFunc(s.signedIn(s.deleteTask))

	return r
}

// session returns the browser's session, if it has a live one.
func (s *server) session(r *http.Request) (*session.Session, bool) {
	id, ok := s.cookies.read(r)
	if !ok {
		return nil, false
	}
	return s.registry.Get(id)
}

// ensureSession returns the browser's session, starting an unresolved one
// when it has none.
func (s *server) ensureSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if sess, ok := s.session(r); ok {
		return sess, nil
	}

	sess := s.registry.Create()
	if err := s.cookies.write(w, sess.ID); err != nil {
		s.registry.Remove(sess.ID)
		return nil, err
	}
	return sess, nil
}

type landingResponse struct {
	Loading bool   `json:"loading,omitempty"`
	SignIn  string `json:"signIn,omitempty"`
}

func (s *server) landing(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		// A browser without a session has no sign-in in flight. No session
		// is kept for it until it starts one.
		s.encode(r.Context(), w, landingResponse{SignIn: "/auth/google"})
		return
	}

	switch {
	case sess.Identity.Resolving():
		// Reported once. A sign-in abandoned at the provider must not keep
		// the landing page loading forever.
		sess.Identity.Settle()
		s.encode(r.Context(), w, landingResponse{Loading: true})
	case sess.Identity.Principal() != nil:
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	default:
		s.encode(r.Context(), w, landingResponse{SignIn: "/auth/google"})
	}
}

func (s *server) beginAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	if _, err := s.ensureSession(w, r); err != nil {
		s.encodeError(r.Context(), err, w)
		return
	}
	if err := s.provider.BeginAuth(w, r, provider); err != nil {
		level.Warn(s.logger).Log("op", "begin_auth", "provider", provider, "err", err)
		s.encodeError(r.Context(), err, w)
	}
}

func (s *server) completeAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	sess, err := s.ensureSession(w, r)
	if err != nil {
		s.encodeError(r.Context(), err, w)
		return
	}

	// Whoever was signed in on this session is replaced either way.
	s.retire(r.Context(), sess)

	p, err := s.signIn(w, r, provider)
	if err != nil {
		level.Warn(s.logger).Log("op", "complete_auth", "provider", provider, "err", err)
		sess.Identity.Notify(nil)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	sess.Identity.Notify(&p)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// signIn completes the provider flow and mints the access token of the new
// principal.
func (s *server) signIn(w http.ResponseWriter, r *http.Request, provider string) (websvc.Principal, error) {
	p, err := s.provider.CompleteAuth(w, r, provider)
	if err != nil {
		return websvc.Principal{}, err
	}
	if p.UID == "" {
		return websvc.Principal{}, websvc.ErrUnauthenticated
	}

	token, err := s.tokens.Login(r.Context(), p.UID)
	if err != nil {
		return websvc.Principal{}, err
	}
	p.AccessToken = token.Hash
	p.AccessUUID = token.UUID

	if _, err := s.accounts.SignIn(r.Context(), usersvc.User{
		UID:           p.UID,
		Name:          p.DisplayName,
		Email:         p.Email,
		AvatarURL:     p.AvatarURL,
		EmailVerified: p.EmailVerified,
	}); err != nil {
		level.Warn(s.logger).Log("op", "record_sign_in", "uid", p.UID, "err", err)
	}
	return p, nil
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(r); ok {
		s.retire(r.Context(), sess)
		sess.Identity.Notify(nil)
		s.registry.Remove(sess.ID)
	}

	if err := s.provider.SignOut(w, r); err != nil {
		level.Warn(s.logger).Log("op", "provider_sign_out", "err", err)
	}
	s.cookies.clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// retire revokes the access token of the session principal, if any, and
// empties the collection. The identity is left for the caller to update.
func (s *server) retire(ctx context.Context, sess *session.Session) {
	if p := sess.Identity.Principal(); p != nil && p.AccessUUID != "" {
		if _, err := s.tokens.Logout(ctx, p.AccessUUID); err != nil {
			level.Warn(s.logger).Log("op", "revoke", "session", sess.ID, "uid", p.UID, "err", err)
		}
	}
	sess.Collection.Clear()
}

// tokenRejected reports whether the task service refused the session's
// access token, which no retry can fix.
func tokenRejected(err error) bool {
	return errors.Is(err, kitjwt.ErrTokenExpired) || errors.Is(err, authsvc.ErrTokenRevoked)
}

// expire signs the session out after its access token was rejected.
func (s *server) expire(sess *session.Session, err error) {
	level.Warn(s.logger).Log("op", "expire", "session", sess.ID, "err", err)
	sess.Identity.Notify(nil)
	sess.Collection.Clear()
}

type accountSummary struct {
	DisplayName   string     `json:"displayName"`
	Email         string     `json:"email"`
	AvatarURL     string     `json:"avatarURL"`
	EmailVerified bool       `json:"emailVerified"`
	TaskCount     int        `json:"taskCount"`
	MemberSince   *time.Time `json:"memberSince,omitempty"`
}

type taskView struct {
	tasksvc.Task
	Due string `json:"due"`
}

type listView struct {
	Sort            string     `json:"sort"`
	Search          string     `json:"q"`
	DefaultDeadline string     `json:"defaultDeadline"`
	Tasks           []taskView `json:"tasks"`
}

type dashboardResponse struct {
	Account accountSummary `json:"account"`
	View    listView       `json:"view"`
}

// dashboard fetches the collection once on entry. Without a principal the
// browser is sent back to the landing page.
func (s *server) dashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok || sess.Identity.Principal() == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	key, search, err := viewQuery(r)
	if err != nil {
		s.encodeError(r.Context(), err, w)
		return
	}

	if err := sess.Collection.Refresh(r.Context()); err != nil {
		if tokenRejected(err) {
			s.expire(sess, err)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		level.Warn(s.logger).Log("op", "dashboard_fetch", "session", sess.ID, "err", err)
	}

	p := sess.Identity.Principal()
	if p == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	tasks := sess.Collection.Tasks()
	account := accountSummary{
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		AvatarURL:     p.AvatarURL,
		EmailVerified: p.EmailVerified,
		TaskCount:     len(tasks),
	}
	if user, err := s.accounts.User(r.Context(), p.UID); err == nil {
		account.MemberSince = &user.CreatedAt
	}

	s.encode(r.Context(), w, dashboardResponse{
		Account: account,
		View:    s.view(tasks, key, search),
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// signedIn rejects requests from browsers without a principal.
func (s *server) signedIn(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(r)
		if !ok || sess.Identity.Principal() == nil {
			s.encodeError(r.Context(), websvc.ErrUnauthenticated, w)
			return
		}
		next(w, r, sess)
	}
}

func (s *server) tasks(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.respondView(w, r, sess)
}

type taskRequest struct {
	Text     string `json:"task"`
	Deadline string `json:"deadline"`
}

type starRequest struct {
	Starred bool `json:"starred"`
}

func (s *server) addTask(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.encodeError(r.Context(), websvc.ErrInvalidArgument, w)
		return
	}
	s.mutate(w, r, sess, func(c *webservice.Commands) error {
		return c.AddTask(r.Context(), req.Text, req.Deadline)
	})
}

func (s *server) updateTask(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := mux.Vars(r)["id"]

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.encodeError(r.Context(), websvc.ErrInvalidArgument, w)
		return
	}
	s.mutate(w, r, sess, func(c *webservice.Commands) error {
		return c.UpdateTask(r.Context(), id, req.Text, req.Deadline)
	})
}

func (s *server) toggleStar(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := mux.Vars(r)["id"]

	var req starRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.encodeError(r.Context(), websvc.ErrInvalidArgument, w)
		return
	}
	s.mutate(w, r, sess, func(c *webservice.Commands) error {
		return c.ToggleStar(r.Context(), id, req.Starred)
	})
}

func (s *server) deleteTask(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := mux.Vars(r)["id"]
	s.mutate(w, r, sess, func(c *webservice.Commands) error {
		return c.DeleteTask(r.Context(), id)
	})
}

// mutate runs one command and answers with the current view. Store failures
// were already logged by the command and leave the view as it was.
func (s *server) mutate(w http.ResponseWriter, r *http.Request, sess *session.Session, run func(*webservice.Commands) error) {
	if _, _, err := viewQuery(r); err != nil {
		s.encodeError(r.Context(), err, w)
		return
	}

	err := run(webservice.ForSession(sess, s.store, s.logger))
	if err != nil && tokenRejected(err) {
		s.expire(sess, err)
		s.encodeError(r.Context(), websvc.ErrUnauthenticated, w)
		return
	}
	if err != nil && !webservice.IsStoreFailure(err) {
		s.encodeError(r.Context(), err, w)
		return
	}
	s.respondView(w, r, sess)
}

func (s *server) respondView(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	key, search, err := viewQuery(r)
	if err != nil {
		s.encodeError(r.Context(), err, w)
		return
	}
	s.encode(r.Context(), w, s.view(sess.Collection.Tasks(), key, search))
}

func (s *server) view(tasks []tasksvc.Task, key tasklist.SortKey, search string) listView {
	now := s.now()

	derived := tasklist.Derive(tasks, key, search)
	views := make([]taskView, 0, len(derived))
	for _, t := range derived {
		views = append(views, taskView{Task: t, Due: tasklist.Due(t, now)})
	}

	return listView{
		Sort:            key.String(),
		Search:          search,
		DefaultDeadline: tasklist.DefaultDeadline(now),
		Tasks:           views,
	}
}

func viewQuery(r *http.Request) (tasklist.SortKey, string, error) {
	q := r.URL.Query()
	key, err := tasklist.ParseSortKey(q.Get("sort"))
	if err != nil {
		return key, "", websvc.ErrInvalidArgument
	}
	return key, q.Get("q"), nil
}

func (s *server) encode(ctx context.Context, w http.ResponseWriter, response interface{}) {
	if err := httptransport.EncodeJSONResponse(ctx, w, response); err != nil {
		level.Error(s.logger).Log("op", "encode", "err", err)
	}
}

func (s *server) encodeError(_ context.Context, err error, w http.ResponseWriter) {
	code := err2code(err)
	if code == http.StatusInternalServerError {
		level.Error(s.logger).Log("err", err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorWrapper{Error: err.Error()})
}

type errorWrapper struct {
	Error string `json:"error"`
}

func err2code(err error) int {
	switch {
	case errors.Is(err, websvc.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, websvc.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, websvc.ErrInvalidArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
