package punchpass

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "admin@studio.test"
	testPassword = "hunter2"
	testToken    = "tok-abc123"
	testCompany  = int64(12433)
)

type testSite struct {
	Server *httptest.Server
	Client *Client
	Logins atomic.Int32
}

// newTestSite stands up the site's auth endpoints plus any extra
// handlers and returns a client pointed at it.
func newTestSite(t *testing.T, extra map[string]http.HandlerFunc) *testSite {
	t.Helper()

	site := &testSite{}

	mux := http.NewServeMux()
	mux.HandleFunc("/account/sign_in", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if r.FormValue("authenticity_token") != testToken ||
				r.FormValue("account[email]") != testEmail ||
				r.FormValue("account[password]") != testPassword {
				w.WriteHeader(http.StatusUnprocessableEntity)
				return
			}
			site.Logins.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "_punchpass52_session", Value: "sess-1", Path: "/"})
			return
		}
		fmt.Fprintf(w, `<html><body>
			<form class="simple_form account" action="/account/sign_in" method="post">
				<input type="hidden" name="authenticity_token" value="%s" />
			</form>
		</body></html>`, testToken)
	})
	mux.HandleFunc(fmt.Sprintf("/account/companies/%d/switch_to_admin_view", testCompany),
		func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "force_login_key", Value: "flk-1", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "remember_account_token", Value: "rat-1", Path: "/"})
		})
	for pattern, handler := range extra {
		mux.HandleFunc(pattern, handler)
	}

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Server.Close)

	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:   site.Server.URL,
		Email:     testEmail,
		Password:  testPassword,
		CompanyId: testCompany,
	})
	require.NoError(t, err)
	site.Client = client

	return site
}
