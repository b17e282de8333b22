// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"net/http"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		RetryBaseDelay: time.Millisecond,
		Now:            func() time.Time { return testNow },
	}
}

func testCreds() *models.OAuthCredentials {
	return &models.OAuthCredentials{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    testNow.Add(time.Hour),
	}
}

func day(s string) time.Time {
	d, err := models.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func checkStringEqual(t *testing.T, name, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", name, got, want)
	}
}

func checkFloat(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %v", name, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", name, *got, want)
	}
}

func checkNilFloat(t *testing.T, name string, got *float64) {
	t.Helper()
	if got != nil {
		t.Errorf("%s = %v, want nil", name, *got)
	}
}

// checkRecordMetrics asserts records cover exactly the days in want and that
// each record populates exactly the listed metrics and nothing else.
func checkRecordMetrics(t *testing.T, records []models.HealthRecord, want map[string][]models.Metric) {
	t.Helper()
	got := make([]string, 0, len(records))
	for _, r := range records {
		got = append(got, r.DateKey())
	}
	wantDays := make([]string, 0, len(want))
	for d := range want {
		wantDays = append(wantDays, d)
	}
	sort.Strings(wantDays)
	if !reflect.DeepEqual(got, wantDays) {
		t.Fatalf("record days = %v, want %v", got, wantDays)
	}

	for i := range records {
		rec := &records[i]
		if !rec.HasMetrics() {
			t.Errorf("%s: record has no metrics", rec.DateKey())
		}
		expected := make(map[models.Metric]bool)
		for _, m := range want[rec.DateKey()] {
			expected[m] = true
		}
		for _, m := range models.AllMetrics() {
			if _, ok := rec.Value(m); ok != expected[m] {
				t.Errorf("%s: %s populated = %v, want %v", rec.DateKey(), m, ok, expected[m])
			}
		}
	}
}

// checkRefetchIdentical fetches twice and requires equal records apart from
// RawPayload.
func checkRefetchIdentical(t *testing.T, fetch func() ([]models.HealthRecord, error)) {
	t.Helper()
	first, err := fetch()
	checkNoError(t, err)
	second, err := fetch()
	checkNoError(t, err)
	for i := range first {
		first[i].RawPayload = nil
	}
	for i := range second {
		second[i].RawPayload = nil
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("refetch differs:\nfirst  %+v\nsecond %+v", first, second)
	}
}
