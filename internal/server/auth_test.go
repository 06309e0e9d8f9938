package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/pravin-sketch/studyflow-ai1/internal/store"
)

func newAuthTest(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &AuthHandler{Store: &store.Store{DB: db}, Secret: []byte("test-secret")}
	return h, mock, func() { db.Close() }
}

func postJSON(t *testing.T, path, payload string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSignupCreatesUser(t *testing.T) {
	h, mock, done := newAuthTest(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id`)).
		WithArgs("a@b.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))

	c, rec := postJSON(t, "/api/auth/signup", `{"email":"a@b.com","password":"longenough"}`)
	if err := h.signup(c); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSignupShortPassword(t *testing.T) {
	h, _, done := newAuthTest(t)
	defer done()

	c, _ := postJSON(t, "/api/auth/signup", `{"email":"a@b.com","password":"short"}`)
	err := h.signup(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	h, mock, done := newAuthTest(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505"})

	c, _ := postJSON(t, "/api/auth/signup", `{"email":"a@b.com","password":"longenough"}`)
	err := h.signup(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestLoginIssuesTokenAndCookie(t *testing.T) {
	h, mock, done := newAuthTest(t)
	defer done()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash, is_blocked FROM users WHERE email=$1`)).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "is_blocked"}).AddRow("user-1", string(hash), false))

	c, rec := postJSON(t, "/api/auth/login", `{"email":"a@b.com","password":"correct-horse"}`)
	if err := h.login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	cookieSet := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "auth" && ck.Value == resp.Token && ck.HttpOnly {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Fatal("auth cookie not set")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, mock, done := newAuthTest(t)
	defer done()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash, is_blocked FROM users WHERE email=$1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "is_blocked"}).AddRow("user-1", string(hash), false))

	c, _ := postJSON(t, "/api/auth/login", `{"email":"a@b.com","password":"wrong"}`)
	err := h.login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestLoginBlockedUser(t *testing.T) {
	h, mock, done := newAuthTest(t)
	defer done()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash, is_blocked FROM users WHERE email=$1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "is_blocked"}).AddRow("user-1", string(hash), true))

	c, _ := postJSON(t, "/api/auth/login", `{"email":"a@b.com","password":"correct-horse"}`)
	err := h.login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
