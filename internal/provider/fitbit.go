// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/models"
)

// DefaultFitbitDayDelay is the minimum spacing between per-day fetch rounds.
const DefaultFitbitDayDelay = time.Second

// FitbitAdapter talks to the Fitbit Web API. Token calls use HTTP Basic
// client authentication and a form body. Data is fetched one day at a time.
type FitbitAdapter struct {
	cfg      config.ProviderConfig
	http     *httpClient
	now      func() time.Time
	stateTTL time.Duration
	dayDelay time.Duration
}

// NewFitbitAdapter creates a Fitbit adapter. dayDelay throttles consecutive
// days of one fetch; zero uses DefaultFitbitDayDelay and a negative value
// disables throttling.
func NewFitbitAdapter(cfg config.ProviderConfig, opts Options, dayDelay time.Duration) *FitbitAdapter {
	opts = opts.withDefaults()
	if dayDelay == 0 {
		dayDelay = DefaultFitbitDayDelay
	}
	return &FitbitAdapter{
		cfg:      cfg,
		http:     newHTTPClient(models.ProviderFitbit, opts),
		now:      opts.Now,
		stateTTL: opts.StateTTL,
		dayDelay: dayDelay,
	}
}

// Provider implements Adapter.
func (a *FitbitAdapter) Provider() models.Provider { return models.ProviderFitbit }

// BuildAuthorizationURL implements Adapter.
func (a *FitbitAdapter) BuildAuthorizationURL(state string) AuthorizationURL {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", a.cfg.ClientID)
	params.Set("redirect_uri", a.cfg.RedirectURI)
	params.Set("scope", a.cfg.Scopes)
	params.Set("state", state)

	return AuthorizationURL{
		URL:       a.cfg.AuthURL + "?" + params.Encode(),
		State:     state,
		ExpiresAt: a.now().Add(a.stateTTL),
	}
}

func (a *FitbitAdapter) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.cfg.ClientID+":"+a.cfg.ClientSecret))
}

// ExchangeCode implements Adapter.
func (a *FitbitAdapter) ExchangeCode(ctx context.Context, code string) (*models.OAuthCredentials, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.cfg.RedirectURI)
	form.Set("client_id", a.cfg.ClientID)

	token, err := a.tokenRequest(ctx, "token_exchange", form)
	if err != nil {
		return nil, exchangeError(models.ProviderFitbit, err)
	}
	return token.credentials(a.now(), false, ""), nil
}

// RefreshToken implements Adapter.
func (a *FitbitAdapter) RefreshToken(ctx context.Context, refreshToken string) (*models.OAuthCredentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	token, err := a.tokenRequest(ctx, "token_refresh", form)
	if err != nil {
		return nil, refreshError(models.ProviderFitbit, err)
	}
	return token.credentials(a.now(), false, refreshToken), nil
}

func (a *FitbitAdapter) tokenRequest(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	encoded := form.Encode()
	return a.http.postToken(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", a.basicAuth())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

// Revoke implements Adapter.
func (a *FitbitAdapter) Revoke(ctx context.Context, creds *models.OAuthCredentials) error {
	if a.cfg.RevokeURL == "" {
		return nil
	}
	return a.http.postForm(ctx, "revoke", a.cfg.RevokeURL, url.Values{"token": {creds.AccessToken}}, func(req *http.Request) {
		req.Header.Set("Authorization", a.basicAuth())
	})
}

type fitbitActivitiesResponse struct {
	Summary struct {
		Steps               *int     `json:"steps"`
		CaloriesOut         *float64 `json:"caloriesOut"`
		FairlyActiveMinutes *float64 `json:"fairlyActiveMinutes"`
		VeryActiveMinutes   *float64 `json:"veryActiveMinutes"`
		Distances           []struct {
			Activity string  `json:"activity"`
			Distance float64 `json:"distance"`
		} `json:"distances"`
	} `json:"summary"`
}

type fitbitSleepResponse struct {
	Summary struct {
		TotalMinutesAsleep *float64 `json:"totalMinutesAsleep"`
	} `json:"summary"`
}

type fitbitHeartResponse struct {
	ActivitiesHeart []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			RestingHeartRate *float64 `json:"restingHeartRate"`
		} `json:"value"`
	} `json:"activities-heart"`
}

type fitbitWeightResponse struct {
	Weight []struct {
		Date   string  `json:"date"`
		Weight float64 `json:"weight"`
	} `json:"weight"`
}

// fitbitSubFetch is one of the four per-day resources.
type fitbitSubFetch struct {
	name string
	path string
	out  interface{}
	raw  []byte
	err  error
}

// FetchRange implements Adapter. Days are fetched sequentially behind a
// rate limiter; the four resources of one day are fetched concurrently.
// A day on which every resource is rejected with 401/403 aborts the range.
// Any other day-level failure skips that day; the range fails only when
// every day failed.
func (a *FitbitAdapter) FetchRange(ctx context.Context, creds *models.OAuthCredentials, start, end time.Time) ([]models.HealthRecord, error) {
	limit := rate.Inf
	if a.dayDelay > 0 {
		limit = rate.Every(a.dayDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	days := dayRange(start, end)
	records := make([]models.HealthRecord, 0, len(days))
	var lastErr error
	failedDays := 0

	for _, day := range days {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &ProviderFetchError{Provider: models.ProviderFitbit, Endpoint: "day", Err: err}
		}

		rec, err := a.fetchDay(ctx, creds.AccessToken, day)
		if err != nil {
			if IsAuthFailure(err) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, &ProviderFetchError{Provider: models.ProviderFitbit, Endpoint: "day", Err: ctx.Err()}
			}
			failedDays++
			lastErr = err
			logging.Ctx(ctx).Warn().Err(err).
				Str("provider", string(models.ProviderFitbit)).
				Str("day", day.Format(models.DateLayout)).
				Msg("Skipping day after failed fetch")
			continue
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}

	if len(days) > 0 && failedDays == len(days) {
		return nil, lastErr
	}
	return records, nil
}

// fetchDay runs the four sub-fetches for one day. It returns an error only
// when all of them failed; the record is nil when the day has no data.
func (a *FitbitAdapter) fetchDay(ctx context.Context, accessToken string, day time.Time) (*models.HealthRecord, error) {
	d := day.Format(models.DateLayout)
	var (
		activities fitbitActivitiesResponse
		sleep      fitbitSleepResponse
		heart      fitbitHeartResponse
		weight     fitbitWeightResponse
	)
	fetches := []*fitbitSubFetch{
		{name: "activities", path: "/1/user/-/activities/date/" + d + ".json", out: &activities},
		{name: "sleep", path: "/1.2/user/-/sleep/date/" + d + ".json", out: &sleep},
		{name: "heart", path: "/1/user/-/activities/heart/date/" + d + "/1d.json", out: &heart},
		{name: "weight", path: "/1/user/-/body/log/weight/date/" + d + ".json", out: &weight},
	}

	var wg sync.WaitGroup
	for _, f := range fetches {
		wg.Add(1)
		go func(f *fitbitSubFetch) {
			defer wg.Done()
			f.raw, f.err = a.http.getJSON(ctx, f.name, a.cfg.APIURL+f.path, accessToken, f.out)
		}(f)
	}
	wg.Wait()

	failed, rejected := 0, 0
	var firstErr error
	raw := make(map[string]json.RawMessage, len(fetches))
	for _, f := range fetches {
		if f.err != nil {
			failed++
			if IsAuthFailure(f.err) {
				rejected++
			}
			if firstErr == nil {
				firstErr = f.err
			}
			logging.Ctx(ctx).Debug().Err(f.err).
				Str("provider", string(models.ProviderFitbit)).
				Str("resource", f.name).
				Str("day", d).
				Msg("Fitbit sub-fetch failed")
			continue
		}
		raw[f.name] = f.raw
	}
	if failed == len(fetches) {
		dayErr := &ProviderFetchError{Provider: models.ProviderFitbit, Endpoint: "day", Day: &day, Err: firstErr}
		if rejected == len(fetches) {
			dayErr.StatusCode = statusOf(firstErr)
		}
		return nil, dayErr
	}

	rec := &models.HealthRecord{Provider: models.ProviderFitbit, Date: day}
	if _, ok := raw["activities"]; ok {
		s := activities.Summary
		if s.Steps != nil && *s.Steps > 0 {
			rec.Steps = models.IntPtr(*s.Steps)
		}
		if s.CaloriesOut != nil {
			rec.CaloriesBurned = models.Float64Ptr(*s.CaloriesOut)
		}
		if s.FairlyActiveMinutes != nil || s.VeryActiveMinutes != nil {
			var active float64
			if s.FairlyActiveMinutes != nil {
				active += *s.FairlyActiveMinutes
			}
			if s.VeryActiveMinutes != nil {
				active += *s.VeryActiveMinutes
			}
			rec.ActiveMinutes = models.Float64Ptr(active)
		}
		for _, dist := range s.Distances {
			if dist.Activity == "total" {
				rec.DistanceMeters = models.Float64Ptr(dist.Distance * 1000)
				break
			}
		}
	}
	if _, ok := raw["sleep"]; ok {
		if m := sleep.Summary.TotalMinutesAsleep; m != nil && *m > 0 {
			rec.SleepMinutes = models.Float64Ptr(*m)
		}
	}
	if _, ok := raw["heart"]; ok {
		for _, entry := range heart.ActivitiesHeart {
			if entry.Value.RestingHeartRate != nil && *entry.Value.RestingHeartRate > 0 {
				rec.RestingHeartRate = models.Float64Ptr(*entry.Value.RestingHeartRate)
			}
		}
	}
	if _, ok := raw["weight"]; ok && len(weight.Weight) > 0 {
		rec.Weight = models.Float64Ptr(weight.Weight[len(weight.Weight)-1].Weight)
	}

	// Calories alone do not make a day: Fitbit reports BMR calories for empty days.
	if rec.Steps == nil && rec.Weight == nil && rec.SleepMinutes == nil && rec.RestingHeartRate == nil {
		return nil, nil
	}
	if payload, err := json.Marshal(raw); err == nil {
		rec.RawPayload = payload
	}
	return rec, nil
}
