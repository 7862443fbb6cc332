package punchpass

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginCapturesSessionCookies(t *testing.T) {
	site := newTestSite(t, nil)

	err := site.Client.EnsureSession(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, site.Logins.Load())

	cookies := site.Client.ExportCookies("https://app.example.test")
	require.Len(t, cookies, 3)
	require.Equal(t, "force_login_key", cookies[0].Name)
	require.Equal(t, "flk-1", cookies[0].Value)
	require.Equal(t, "remember_account_token", cookies[1].Name)
	require.Equal(t, "rat-1", cookies[1].Value)
	require.Equal(t, "_punchpass52_session", cookies[2].Name)
	require.Equal(t, "sess-1", cookies[2].Value)
	for _, cookie := range cookies {
		require.Equal(t, "https://app.example.test", cookie.Url)
	}
}

func TestEnsureSessionReusesCookies(t *testing.T) {
	site := newTestSite(t, nil)
	ctx := context.Background()

	require.NoError(t, site.Client.EnsureSession(ctx))
	require.NoError(t, site.Client.EnsureSession(ctx))
	require.NoError(t, site.Client.EnsureSession(ctx))
	require.EqualValues(t, 1, site.Logins.Load())
}

func TestInvalidateForcesReauth(t *testing.T) {
	site := newTestSite(t, nil)
	ctx := context.Background()

	require.NoError(t, site.Client.EnsureSession(ctx))
	site.Client.Invalidate()
	require.Nil(t, site.Client.ExportCookies("https://app.example.test"))

	require.NoError(t, site.Client.EnsureSession(ctx))
	require.EqualValues(t, 2, site.Logins.Load())
}

func TestLoginFailsWithoutToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/sign_in", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>maintenance</p></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:   server.URL,
		Email:     testEmail,
		Password:  testPassword,
		CompanyId: testCompany,
	})
	require.NoError(t, err)

	err = client.EnsureSession(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
	require.Nil(t, client.ExportCookies(server.URL))
}
