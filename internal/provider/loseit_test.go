// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/models"
)

func loseItConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Enabled:      true,
		ClientID:     "loseit-client",
		ClientSecret: "loseit-secret",
		RedirectURI:  "https://app.example.com/callback/loseit",
		AuthURL:      "https://www.loseit.com/oauth/authorize",
		TokenURL:     baseURL + "/oauth/token",
		APIURL:       baseURL,
	}
}

func TestLoseItExchangeCodeInlineCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("Authorization = %q, want empty", r.Header.Get("Authorization"))
		}
		_ = r.ParseForm()
		checkStringEqual(t, "client_id", r.PostForm.Get("client_id"), "loseit-client")
		checkStringEqual(t, "client_secret", r.PostForm.Get("client_secret"), "loseit-secret")
		checkStringEqual(t, "code", r.PostForm.Get("code"), "auth-code")
		writeJSON(w, http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":3600}`)
	}))
	defer server.Close()

	a := NewLoseItAdapter(loseItConfig(server.URL), testOptions())
	creds, err := a.ExchangeCode(context.Background(), "auth-code")
	checkNoError(t, err)
	checkStringEqual(t, "AccessToken", creds.AccessToken, "at")
	if want := testNow.Add(time.Hour); !creds.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", creds.ExpiresAt, want)
	}
}

func TestLoseItFetchRangeMergesSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "start_date", r.URL.Query().Get("start_date"), "2024-03-01")
		checkStringEqual(t, "end_date", r.URL.Query().Get("end_date"), "2024-03-02")
		switch r.URL.Path {
		case "/v1/nutrition":
			writeJSON(w, http.StatusOK, `{"entries":[
				{"date":"2024-03-01","calories":600,"water_ml":500},
				{"date":"2024-03-01","calories":900,"water_ml":750},
				{"date":"2024-03-02","calories":1800}
			]}`)
		case "/v1/weight":
			writeJSON(w, http.StatusOK, `{"entries":[{"date":"2024-03-02","weight":72.4}]}`)
		case "/v1/exercise":
			writeJSON(w, http.StatusOK, `{"entries":[
				{"date":"2024-03-01","minutes":30,"calories":250},
				{"date":"2024-03-01","minutes":15,"calories":100}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	a := NewLoseItAdapter(loseItConfig(server.URL), testOptions())
	records, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-02"))
	checkNoError(t, err)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0]
	checkStringEqual(t, "day1", first.DateKey(), "2024-03-01")
	checkFloat(t, "CaloriesIntake", first.CaloriesIntake, 1500)
	checkFloat(t, "WaterMilliliters", first.WaterMilliliters, 1250)
	checkFloat(t, "ExerciseMinutes", first.ExerciseMinutes, 45)
	checkFloat(t, "CaloriesBurned", first.CaloriesBurned, 350)
	checkNilFloat(t, "Weight", first.Weight)

	second := records[1]
	checkStringEqual(t, "day2", second.DateKey(), "2024-03-02")
	checkFloat(t, "CaloriesIntake", second.CaloriesIntake, 1800)
	checkFloat(t, "Weight", second.Weight, 72.4)
	checkNilFloat(t, "ExerciseMinutes", second.ExerciseMinutes)
}

func TestLoseItFetchRangeToleratesPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/weight" {
			writeJSON(w, http.StatusOK, `{"entries":[{"date":"2024-03-01","weight":70}]}`)
			return
		}
		writeJSON(w, http.StatusBadGateway, `{}`)
	}))
	defer server.Close()

	a := NewLoseItAdapter(loseItConfig(server.URL), testOptions())
	records, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-01"))
	checkNoError(t, err)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	checkFloat(t, "Weight", records[0].Weight, 70)
}

func TestLoseItFetchRangeAllSourcesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{}`)
	}))
	defer server.Close()

	a := NewLoseItAdapter(loseItConfig(server.URL), testOptions())
	_, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-01"))

	var fetchErr *ProviderFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *ProviderFetchError", err)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable = false, want true for 502")
	}
}

func TestLoseItFetchRangeEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"entries":[]}`)
	}))
	defer server.Close()

	a := NewLoseItAdapter(loseItConfig(server.URL), testOptions())
	records, err := a.FetchRange(context.Background(), testCreds(), day("2024-03-01"), day("2024-03-07"))
	checkNoError(t, err)
	if records == nil || len(records) != 0 {
		t.Errorf("records = %v, want empty non-nil slice", records)
	}
}

func TestLoseItRevokeIsNoop(t *testing.T) {
	a := NewLoseItAdapter(loseItConfig("http://127.0.0.1:1"), testOptions())
	checkNoError(t, a.Revoke(context.Background(), testCreds()))
}

func TestLoseItFetchRangeCanonicalRecords(t *testing.T) {
	tests := []struct {
		name      string
		nutrition string
		weight    string
		exercise  string
		want      map[string][]models.Metric
	}{
		{
			name:      "weight only",
			nutrition: `{"entries":[]}`,
			weight:    `{"entries":[{"date":"2024-03-01","weight":70.2}]}`,
			exercise:  `{"entries":[]}`,
			want:      map[string][]models.Metric{"2024-03-01": {models.MetricWeight}},
		},
		{
			name:      "entries without metrics",
			nutrition: `{"entries":[{"date":"2024-03-01"}]}`,
			weight:    `{"entries":[{"date":"2024-03-01","weight":null}]}`,
			exercise:  `{"entries":[{"date":"2024-03-02","minutes":null}]}`,
			want:      map[string][]models.Metric{},
		},
		{
			name:      "empty entry beside a reported one",
			nutrition: `{"entries":[{"date":"2024-03-01"},{"date":"2024-03-01","water_ml":250}]}`,
			weight:    `{"entries":[]}`,
			exercise:  `{"entries":[{"date":"2024-03-02"},{"date":"2024-03-02","calories":120}]}`,
			want: map[string][]models.Metric{
				"2024-03-01": {models.MetricWaterMilliliters},
				"2024-03-02": {models.MetricCaloriesBurned},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v1/nutrition":
					writeJSON(w, http.StatusOK, tt.nutrition)
				case "/v1/weight":
					writeJSON(w, http.StatusOK, tt.weight)
				case "/v1/exercise":
					writeJSON(w, http.StatusOK, tt.exercise)
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			}))
			defer server.Close()

			a := NewLoseItAdapter(loseItConfig(server.URL), testOptions())
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
