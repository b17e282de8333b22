// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/models"
)

func stravaConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Enabled:      true,
		ClientID:     "strava-client",
		ClientSecret: "strava-secret",
		RedirectURI:  "https://app.example.com/callback/strava",
		Scopes:       "read,activity:read_all",
		AuthURL:      "https://www.strava.com/oauth/authorize",
		TokenURL:     baseURL + "/oauth/token",
		RevokeURL:    baseURL + "/oauth/deauthorize",
		APIURL:       baseURL + "/api/v3",
	}
}

func TestStravaBuildAuthorizationURL(t *testing.T) {
	a := NewStravaAdapter(stravaConfig("http://unused"), testOptions(), 0)
	got := a.BuildAuthorizationURL("nonce-1")

	u, err := url.Parse(got.URL)
	checkNoError(t, err)
	checkStringEqual(t, "host", u.Host, "www.strava.com")
	checkStringEqual(t, "path", u.Path, "/oauth/authorize")

	q := u.Query()
	checkStringEqual(t, "client_id", q.Get("client_id"), "strava-client")
	checkStringEqual(t, "redirect_uri", q.Get("redirect_uri"), "https://app.example.com/callback/strava")
	checkStringEqual(t, "response_type", q.Get("response_type"), "code")
	checkStringEqual(t, "approval_prompt", q.Get("approval_prompt"), "auto")
	checkStringEqual(t, "scope", q.Get("scope"), "read,activity:read_all")
	checkStringEqual(t, "state", q.Get("state"), "nonce-1")
	checkStringEqual(t, "State", got.State, "nonce-1")

	if !got.ExpiresAt.Equal(testNow.Add(DefaultStateTTL)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, testNow.Add(DefaultStateTTL))
	}
}

func TestStravaExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, "/oauth/token")
		checkStringEqual(t, "content-type", r.Header.Get("Content-Type"), "application/json")

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		checkStringEqual(t, "client_id", body["client_id"], "strava-client")
		checkStringEqual(t, "client_secret", body["client_secret"], "strava-secret")
		checkStringEqual(t, "code", body["code"], "auth-code")
		checkStringEqual(t, "grant_type", body["grant_type"], "authorization_code")

		writeJSON(w, http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_at":1710100000,"token_type":"Bearer"}`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	creds, err := a.ExchangeCode(context.Background(), "auth-code")
	checkNoError(t, err)

	checkStringEqual(t, "AccessToken", creds.AccessToken, "at")
	checkStringEqual(t, "RefreshToken", creds.RefreshToken, "rt")
	checkStringEqual(t, "TokenType", creds.TokenType, "Bearer")
	if want := time.Unix(1710100000, 0).UTC(); !creds.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", creds.ExpiresAt, want)
	}
}

func TestStravaExchangeCodeFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"bad request", http.StatusBadRequest, `{"message":"Bad Request"}`, http.StatusBadRequest},
		{"malformed body", http.StatusOK, `not-json`, http.StatusOK},
		{"missing access token", http.StatusOK, `{"expires_at":1710100000}`, http.StatusOK},
		{"server error", http.StatusInternalServerError, `oops`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer server.Close()

			a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
			_, err := a.ExchangeCode(context.Background(), "auth-code")

			var exchangeErr *AuthExchangeError
			if !errors.As(err, &exchangeErr) {
				t.Fatalf("error = %v, want *AuthExchangeError", err)
			}
			if exchangeErr.Provider != "strava" {
				t.Errorf("Provider = %q, want strava", exchangeErr.Provider)
			}
			if exchangeErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", exchangeErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestStravaRefreshTokenKeepsOldRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		checkStringEqual(t, "grant_type", body["grant_type"], "refresh_token")
		checkStringEqual(t, "refresh_token", body["refresh_token"], "old-refresh")
		writeJSON(w, http.StatusOK, `{"access_token":"new-at","expires_at":1710100000}`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	creds, err := a.RefreshToken(context.Background(), "old-refresh")
	checkNoError(t, err)
	checkStringEqual(t, "AccessToken", creds.AccessToken, "new-at")
	checkStringEqual(t, "RefreshToken", creds.RefreshToken, "old-refresh")
}

func TestStravaRefreshTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"Authorization Error"}`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	_, err := a.RefreshToken(context.Background(), "old-refresh")

	var refreshErr *TokenRefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("error = %v, want *TokenRefreshError", err)
	}
	if refreshErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", refreshErr.StatusCode)
	}
	if !IsAuthFailure(err) {
		t.Error("IsAuthFailure = false, want true")
	}
}

func TestStravaFetchRangeGroupsByDay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, "/api/v3/athlete/activities")
		checkStringEqual(t, "auth", r.Header.Get("Authorization"), "Bearer access-token")
		checkStringEqual(t, "per_page", r.URL.Query().Get("per_page"), "200")
		writeJSON(w, http.StatusOK, `[
			{"id":1,"start_date":"2024-03-01T07:00:00Z","moving_time":1800,"distance":5000,"calories":300,"has_heartrate":true,"average_heartrate":140},
			{"id":2,"start_date":"2024-03-01T18:00:00Z","moving_time":1200,"distance":3000,"has_heartrate":false},
			{"id":3,"start_date":"2024-03-02T09:00:00Z","moving_time":600,"distance":1000,"calories":100,"has_heartrate":true,"average_heartrate":120},
			{"id":4,"start_date":"2024-03-02T10:00:00Z","moving_time":600,"has_heartrate":true,"average_heartrate":160},
			{"id":5,"start_date":"2024-02-20T10:00:00Z","moving_time":600}
		]`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	records, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-02"))
	checkNoError(t, err)

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0]
	checkStringEqual(t, "day1", first.DateKey(), "2024-03-01")
	checkFloat(t, "day1 ExerciseMinutes", first.ExerciseMinutes, 50)
	checkFloat(t, "day1 CaloriesBurned", first.CaloriesBurned, 300)
	checkFloat(t, "day1 DistanceMeters", first.DistanceMeters, 8000)
	checkFloat(t, "day1 HeartRate", first.HeartRate, 140)
	if len(first.RawPayload) == 0 {
		t.Error("day1 RawPayload is empty")
	}

	second := records[1]
	checkStringEqual(t, "day2", second.DateKey(), "2024-03-02")
	checkFloat(t, "day2 ExerciseMinutes", second.ExerciseMinutes, 20)
	checkFloat(t, "day2 HeartRate", second.HeartRate, 140)
	checkFloat(t, "day2 CaloriesBurned", second.CaloriesBurned, 100)
}

func TestStravaFetchRangeNoHeartRateKeepsDay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":1,"start_date":"2024-03-01T07:00:00Z","moving_time":600}]`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	records, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-01"))
	checkNoError(t, err)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	checkNilFloat(t, "HeartRate", records[0].HeartRate)
	checkNilFloat(t, "CaloriesBurned", records[0].CaloriesBurned)
	checkFloat(t, "ExerciseMinutes", records[0].ExerciseMinutes, 10)
}

func TestStravaFetchRangeEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	records, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-05"))
	checkNoError(t, err)
	if records == nil || len(records) != 0 {
		t.Errorf("records = %v, want empty non-nil slice", records)
	}
}

func TestStravaFetchRangePaginates(t *testing.T) {
	var pages int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := atomic.AddInt32(&pages, 1)
		checkStringEqual(t, "page", r.URL.Query().Get("page"), fmt.Sprint(page))
		if page == 1 {
			items := make([]string, stravaPerPage)
			for i := range items {
				items[i] = `{"id":1,"start_date":"2024-03-01T07:00:00Z","moving_time":60}`
			}
			writeJSON(w, http.StatusOK, "["+strings.Join(items, ",")+"]")
			return
		}
		writeJSON(w, http.StatusOK, `[{"id":2,"start_date":"2024-03-01T08:00:00Z","moving_time":60}]`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 5)
	records, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-01"))
	checkNoError(t, err)

	if got := atomic.LoadInt32(&pages); got != 2 {
		t.Errorf("pages requested = %d, want 2", got)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	checkFloat(t, "ExerciseMinutes", records[0].ExerciseMinutes, float64(stravaPerPage+1))
}

func TestStravaFetchRangePageCap(t *testing.T) {
	var pages int32
	items := make([]string, stravaPerPage)
	for i := range items {
		items[i] = `{"id":1,"start_date":"2024-03-01T07:00:00Z","moving_time":60}`
	}
	full := "[" + strings.Join(items, ",") + "]"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		writeJSON(w, http.StatusOK, full)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 2)
	_, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-01"))
	checkNoError(t, err)
	if got := atomic.LoadInt32(&pages); got != 2 {
		t.Errorf("pages requested = %d, want 2", got)
	}
}

func TestStravaFetchRangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"Authorization Error"}`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	_, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-01"))

	var fetchErr *ProviderFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *ProviderFetchError", err)
	}
	if fetchErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", fetchErr.StatusCode)
	}
}

func TestStravaRateLimitRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusTooManyRequests, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `[]`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	_, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-01"))
	checkNoError(t, err)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestStravaRevoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, "/oauth/deauthorize")
		_ = r.ParseForm()
		checkStringEqual(t, "access_token", r.PostForm.Get("access_token"), "access-token")
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer server.Close()

	a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
	checkNoError(t, a.Revoke(context.Background(), testCreds()))
}

func TestStravaFetchRangeCanonicalRecords(t *testing.T) {
	tests := []struct {
		name       string
		activities string
		want       map[string][]models.Metric
	}{
		{
			name:       "distance only",
			activities: `[{"id":1,"start_date":"2024-03-01T07:00:00Z","distance":5000}]`,
			want:       map[string][]models.Metric{"2024-03-01": {models.MetricDistanceMeters}},
		},
		{
			name:       "moving time only",
			activities: `[{"id":1,"start_date":"2024-03-01T07:00:00Z","moving_time":900}]`,
			want:       map[string][]models.Metric{"2024-03-01": {models.MetricExerciseMinutes}},
		},
		{
			name:       "activity without metrics",
			activities: `[{"id":1,"start_date":"2024-03-01T07:00:00Z","has_heartrate":false}]`,
			want:       map[string][]models.Metric{},
		},
		{
			name: "metric-less activity beside a reported one",
			activities: `[
				{"id":1,"start_date":"2024-03-01T07:00:00Z"},
				{"id":2,"start_date":"2024-03-02T07:00:00Z","calories":210,"has_heartrate":true,"average_heartrate":131}
			]`,
			want: map[string][]models.Metric{"2024-03-02": {models.MetricCaloriesBurned, models.MetricHeartRate}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("page") != "" && r.URL.Query().Get("page") != "1" {
					writeJSON(w, http.StatusOK, `[]`)
					return
				}
				writeJSON(w, http.StatusOK, tt.activities)
			}))
			defer server.Close()

			a := NewStravaAdapter(stravaConfig(server.URL), testOptions(), 0)
			fetch := func() ([]models.HealthRecord, error) {
				return a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-02"))
			}

			records, err := fetch()
			checkNoError(t, err)
			checkRecordMetrics(t, records, tt.want)
			checkRefetchIdentical(t, fetch)
		})
	}
}
