package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"punchpass-backend/lib/scrapers/punchpass"
	"punchpass-backend/lib/testutil"
	"punchpass-backend/lib/timezone"
	"punchpass-backend/services/punchpass/db"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type stubBrowser struct {
	mu    sync.Mutex
	calls []ConfirmRequest
	err   error
	delay time.Duration
}

func (b *stubBrowser) ConfirmAttendance(ctx context.Context, req ConfirmRequest) error {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()
	return b.err
}

func (b *stubBrowser) Calls() []ConfirmRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ConfirmRequest(nil), b.calls...)
}

type fixture struct {
	Service Service
	Qry     *db.Queries
	API     *httptest.Server
	HTTP    *http.Client
}

func setup(t *testing.T, browser Browser, options Options) fixture {
	t.Helper()

	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "punchpass/server",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	siteMux := http.NewServeMux()
	siteMux.HandleFunc("/account/sign_in", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.SetCookie(w, &http.Cookie{Name: "_punchpass52_session", Value: "sess", Path: "/"})
			return
		}
		fmt.Fprint(w, `<form class="simple_form account"><input name="authenticity_token" value="tok" /></form>`)
	})
	siteMux.HandleFunc("/account/companies/1/switch_to_admin_view", func(w http.ResponseWriter, r *http.Request) {})
	siteMux.HandleFunc("/a/customers.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("columns[3][search][value]") != "dana@example.test" {
			fmt.Fprint(w, `{"data":[]}`)
			return
		}
		fmt.Fprint(w, `{"data":[{
			"object_id": 52417,
			"first_name": "Dana",
			"last_name": "Reyes",
			"phone": "555-0100",
			"email": "dana@example.test"
		}]}`)
	})
	site := httptest.NewServer(siteMux)
	t.Cleanup(site.Close)

	client, err := punchpass.NewClient(context.Background(), punchpass.ClientOptions{
		BaseUrl:   site.URL,
		Email:     "a@b.test",
		Password:  "pw",
		CompanyId: 1,
	})
	require.NoError(t, err)

	svc := NewService(res.DB, client, browser, options)
	router := chi.NewRouter()
	svc.RegisterRoutes(router)
	api := httptest.NewServer(router)
	t.Cleanup(api.Close)

	return fixture{
		Service: svc,
		Qry:     db.New(res.DB),
		API:     api,
		HTTP: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (f fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	res, err := f.HTTP.Get(f.API.URL + path)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	return res, body
}

func (f fixture) post(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	buf, err := json.Marshal(payload)
	require.NoError(t, err)
	res, err := f.HTTP.Post(f.API.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	return res, body
}

func seedEvent(t *testing.T, qry *db.Queries, id int64, title string, start time.Time) {
	t.Helper()
	err := qry.UpsertEvent(context.Background(), db.EventParams(punchpass.Event{
		Id:         id,
		Status:     punchpass.StatusConfirmed,
		Url:        fmt.Sprintf("https://studio.example.test/classes/%d", id),
		Title:      title,
		Instructor: "Dana Reyes",
		Location:   "Studio A",
		Start: &punchpass.StructuredTime{
			Date:     start.Format("2006-01-02"),
			DateTime: start.Format(time.RFC3339),
			TimeZone: "America/New_York",
		},
		End: &punchpass.StructuredTime{
			Date:     start.Format("2006-01-02"),
			DateTime: start.Add(time.Hour).Format(time.RFC3339),
			TimeZone: "America/New_York",
		},
		Timestamp: time.Now(),
	}))
	require.NoError(t, err)
}

func seedUser(t *testing.T, qry *db.Queries, user punchpass.User) {
	t.Helper()
	err := qry.CreateUser(context.Background(), db.UserParams(user))
	require.NoError(t, err)
}

func TestGetSchedule(t *testing.T) {
	f := setup(t, &stubBrowser{}, Options{ExcludeTitles: []string{"Private Session"}})

	res, body := f.get(t, "/schedule/")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), "No events found for today.")

	today := timezone.StartOfDay(timezone.Now())
	seedEvent(t, f.Qry, 2, "Evening Flow", today.Add(time.Hour*18))
	seedEvent(t, f.Qry, 1, "Morning Flow", today.Add(time.Hour*9))
	seedEvent(t, f.Qry, 3, "Private Session", today.Add(time.Hour*12))
	seedEvent(t, f.Qry, 4, "Tomorrow Flow", today.Add(time.Hour*33))

	res, body = f.get(t, "/schedule/")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var payload struct {
		Schedule []punchpass.Event `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Schedule, 2)
	require.Equal(t, "Morning Flow", payload.Schedule[0].Title)
	require.Equal(t, "Evening Flow", payload.Schedule[1].Title)
}

func TestGetEvent(t *testing.T) {
	f := setup(t, &stubBrowser{}, Options{})
	seedEvent(t, f.Qry, 42, "Morning Flow", timezone.Now())

	res, body := f.get(t, "/schedule/42")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var ev punchpass.Event
	require.NoError(t, json.Unmarshal(body, &ev))
	require.Equal(t, int64(42), ev.Id)
	require.Equal(t, "Morning Flow", ev.Title)
	require.NotNil(t, ev.Start)

	res, body = f.get(t, "/schedule/999")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), "Event 999 not found.")
}

func waitForStatus(t *testing.T, f fixture, id string, wantCode int) checkInStatusResponse {
	t.Helper()
	var last checkInStatusResponse
	require.Eventually(t, func() bool {
		res, body := f.get(t, statusPath(id))
		if res.StatusCode != wantCode {
			return false
		}
		require.NoError(t, json.Unmarshal(body, &last))
		return true
	}, time.Second*5, time.Millisecond*20)
	return last
}

func TestCheckInConfirmed(t *testing.T) {
	browser := &stubBrowser{}
	f := setup(t, browser, Options{})
	seedEvent(t, f.Qry, 7, "Morning Flow", timezone.Now())
	seedUser(t, f.Qry, punchpass.User{Id: 100, FirstName: "Dana", LastName: "Reyes"})

	res, body := f.post(t, "/schedule/7/check_in", checkInRequest{FirstName: "Dana", LastName: "Reyes"})
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	var attempt checkInResponse
	require.NoError(t, json.Unmarshal(body, &attempt))
	require.NotEmpty(t, attempt.Id)
	require.Equal(t, "Check-in for Dana Reyes started.", attempt.Detail)
	require.Equal(t, CheckInPending, attempt.Status)
	require.Equal(t, statusPath(attempt.Id), attempt.Location)
	require.Equal(t, statusPath(attempt.Id), res.Header.Get("Location"))

	status := waitForStatus(t, f, attempt.Id, http.StatusOK)
	require.Equal(t, CheckInConfirmed, status.Status)

	calls := browser.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "https://studio.example.test/classes/7", calls[0].EventUrl)
	require.Equal(t, "Dana Reyes", calls[0].AttendeeName)
	require.False(t, calls[0].DryRun)
}

func TestCheckInFailed(t *testing.T) {
	browser := &stubBrowser{err: fmt.Errorf("search box never appeared")}
	f := setup(t, browser, Options{})
	seedEvent(t, f.Qry, 7, "Morning Flow", timezone.Now())
	seedUser(t, f.Qry, punchpass.User{Id: 100, FirstName: "Dana", LastName: "Reyes"})

	res, body := f.post(t, "/schedule/7/check_in", checkInRequest{FirstName: "Dana", LastName: "Reyes"})
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	var attempt checkInResponse
	require.NoError(t, json.Unmarshal(body, &attempt))

	status := waitForStatus(t, f, attempt.Id, http.StatusInternalServerError)
	require.Equal(t, CheckInFailed, status.Status)
}

func TestCheckInValidation(t *testing.T) {
	f := setup(t, &stubBrowser{}, Options{})
	seedEvent(t, f.Qry, 7, "Morning Flow", timezone.Now())

	res, _ := f.post(t, "/schedule/7/check_in", checkInRequest{FirstName: "Dana"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body := f.post(t, "/schedule/7/check_in", checkInRequest{FirstName: "Dana", LastName: "Reyes"})
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), "User Dana Reyes not found.")

	res, body = f.post(t, "/schedule/999/check_in", checkInRequest{FirstName: "Dana", LastName: "Reyes"})
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), "Event 999 not found.")
}

func TestCheckInStatusMappings(t *testing.T) {
	browser := &stubBrowser{delay: time.Minute}
	f := setup(t, browser, Options{})
	seedEvent(t, f.Qry, 7, "Morning Flow", timezone.Now())
	seedUser(t, f.Qry, punchpass.User{Id: 100, FirstName: "Dana", LastName: "Reyes"})

	res, _ := f.get(t, statusPath("no-such-id"))
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	_, body := f.post(t, "/schedule/7/check_in", checkInRequest{FirstName: "Dana", LastName: "Reyes"})
	var attempt checkInResponse
	require.NoError(t, json.Unmarshal(body, &attempt))

	res, body = f.get(t, statusPath(attempt.Id))
	require.Equal(t, http.StatusFound, res.StatusCode)
	require.Equal(t, statusPath(attempt.Id), res.Header.Get("Location"))
	var status checkInStatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	require.Equal(t, CheckInPending, status.Status)

	// aborting the attempt settles it as failed
	require.True(t, f.Service.CancelCheckIn(attempt.Id))
	status = waitForStatus(t, f, attempt.Id, http.StatusInternalServerError)
	require.Equal(t, CheckInFailed, status.Status)
	require.Eventually(t, func() bool {
		return !f.Service.CancelCheckIn(attempt.Id)
	}, time.Second, time.Millisecond*10)
}

func TestBulkCheckIn(t *testing.T) {
	browser := &stubBrowser{}
	f := setup(t, browser, Options{DryRun: true})
	now := timezone.Now()
	seedEvent(t, f.Qry, 1, "Morning Flow", now)
	seedEvent(t, f.Qry, 2, "Midday Flow", now.Add(time.Hour))
	seedEvent(t, f.Qry, 3, "Evening Flow", now.Add(time.Hour*2))
	seedUser(t, f.Qry, punchpass.User{Id: 100, FirstName: "Dana", LastName: "Reyes"})

	res, body := f.post(t, "/schedule/check_in/bulk", bulkCheckInRequest{
		EventIds:  []int64{1, 2, 3},
		FirstName: "Dana",
		LastName:  "Reyes",
	})
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	var payload bulkCheckInResponse
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.CheckIns, 3)

	seen := map[string]bool{}
	for _, attempt := range payload.CheckIns {
		require.False(t, seen[attempt.Id], "check-in ids must be unique")
		seen[attempt.Id] = true
		status := waitForStatus(t, f, attempt.Id, http.StatusOK)
		require.Equal(t, CheckInConfirmed, status.Status)
	}

	calls := browser.Calls()
	require.Len(t, calls, 3)
	for _, call := range calls {
		require.True(t, call.DryRun)
	}

	res, body = f.post(t, "/schedule/check_in/bulk", bulkCheckInRequest{
		EventIds:  []int64{1, 999},
		FirstName: "Dana",
		LastName:  "Reyes",
	})
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), "Event 999 not found.")
}

func TestCreateUser(t *testing.T) {
	f := setup(t, &stubBrowser{}, Options{})

	res, body := f.post(t, "/users/", createUserRequest{Email: "not-an-email"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Contains(t, string(body), "Invalid email address.")

	// remote lookup path persists the customer
	res, body = f.post(t, "/users/", createUserRequest{Email: "dana@example.test"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var user punchpass.User
	require.NoError(t, json.Unmarshal(body, &user))
	require.Equal(t, int64(52417), user.Id)
	require.Equal(t, "Dana", user.FirstName)

	row, err := f.Qry.GetUserByEmail(context.Background(), "dana@example.test")
	require.NoError(t, err)
	require.Equal(t, int64(52417), row.UserID)

	// second call hits the local roster
	res, _ = f.post(t, "/users/", createUserRequest{Email: "dana@example.test"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = f.post(t, "/users/", createUserRequest{Email: "nobody@example.test"})
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Contains(t, string(body), "No customer found for nobody@example.test.")
}

func TestTransitionCheckInTerminalOnce(t *testing.T) {
	f := setup(t, &stubBrowser{}, Options{})
	ctx := context.Background()

	err := f.Qry.CreateCheckIn(ctx, db.CreateCheckInParams{
		CheckInID: "abc",
		EventID:   1,
		UserID:    2,
		Status:    CheckInPending,
		CreatedAt: "2025-03-10T18:00:00Z",
		UpdatedAt: "2025-03-10T18:00:00Z",
	})
	require.NoError(t, err)

	rows, err := f.Qry.TransitionCheckIn(ctx, db.TransitionCheckInParams{
		CheckInID: "abc", Status: CheckInConfirmed, UpdatedAt: "2025-03-10T18:01:00Z",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	// a terminal state never flips to the other terminal state
	rows, err = f.Qry.TransitionCheckIn(ctx, db.TransitionCheckInParams{
		CheckInID: "abc", Status: CheckInFailed, UpdatedAt: "2025-03-10T18:02:00Z",
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)

	// re-applying the same terminal state is idempotent
	rows, err = f.Qry.TransitionCheckIn(ctx, db.TransitionCheckInParams{
		CheckInID: "abc", Status: CheckInConfirmed, UpdatedAt: "2025-03-10T18:03:00Z",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	row, err := f.Qry.GetCheckIn(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, CheckInConfirmed, row.Status)
}

func TestNameAppears(t *testing.T) {
	page := "Attendance\nDana  Reyes\n10 punches left\n"
	require.True(t, nameAppears(page, "Dana Reyes"))
	require.True(t, nameAppears("Dana Rayes checked in", "Dana Reyes"))
	require.False(t, nameAppears(page, "Mike Ortiz"))
	require.False(t, nameAppears(page, ""))
}
