// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/models"
)

const (
	stravaPerPage         = 200
	defaultStravaMaxPages = 10
)

// StravaAdapter talks to the Strava v3 API. Token calls use a JSON body and
// report an absolute expires_at. Activities are grouped by calendar day.
type StravaAdapter struct {
	cfg      config.ProviderConfig
	http     *httpClient
	now      func() time.Time
	stateTTL time.Duration
	maxPages int
}

// NewStravaAdapter creates a Strava adapter. maxPages caps pagination per fetch.
func NewStravaAdapter(cfg config.ProviderConfig, opts Options, maxPages int) *StravaAdapter {
	opts = opts.withDefaults()
	if maxPages <= 0 {
		maxPages = defaultStravaMaxPages
	}
	return &StravaAdapter{
		cfg:      cfg,
		http:     newHTTPClient(models.ProviderStrava, opts),
		now:      opts.Now,
		stateTTL: opts.StateTTL,
		maxPages: maxPages,
	}
}

// Provider implements Adapter.
func (a *StravaAdapter) Provider() models.Provider { return models.ProviderStrava }

// BuildAuthorizationURL implements Adapter.
func (a *StravaAdapter) BuildAuthorizationURL(state string) AuthorizationURL {
	params := url.Values{}
	params.Set("client_id", a.cfg.ClientID)
	params.Set("redirect_uri", a.cfg.RedirectURI)
	params.Set("response_type", "code")
	params.Set("approval_prompt", "auto")
	params.Set("scope", a.cfg.Scopes)
	params.Set("state", state)

	return AuthorizationURL{
		URL:       a.cfg.AuthURL + "?" + params.Encode(),
		State:     state,
		ExpiresAt: a.now().Add(a.stateTTL),
	}
}

// ExchangeCode implements Adapter.
func (a *StravaAdapter) ExchangeCode(ctx context.Context, code string) (*models.OAuthCredentials, error) {
	token, err := a.tokenRequest(ctx, "token_exchange", map[string]string{
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
	})
	if err != nil {
		return nil, exchangeError(models.ProviderStrava, err)
	}
	return token.credentials(a.now(), true, ""), nil
}

// RefreshToken implements Adapter.
func (a *StravaAdapter) RefreshToken(ctx context.Context, refreshToken string) (*models.OAuthCredentials, error) {
	token, err := a.tokenRequest(ctx, "token_refresh", map[string]string{
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
		"refresh_token": refreshToken,
		"grant_type":    "refresh_token",
	})
	if err != nil {
		return nil, refreshError(models.ProviderStrava, err)
	}
	return token.credentials(a.now(), true, refreshToken), nil
}

func (a *StravaAdapter) tokenRequest(ctx context.Context, endpoint string, payload map[string]string) (*tokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return a.http.postToken(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

// Revoke implements Adapter.
func (a *StravaAdapter) Revoke(ctx context.Context, creds *models.OAuthCredentials) error {
	if a.cfg.RevokeURL == "" {
		return nil
	}
	return a.http.postForm(ctx, "deauthorize", a.cfg.RevokeURL, url.Values{"access_token": {creds.AccessToken}}, nil)
}

// stravaActivity holds the SummaryActivity fields that feed the canonical record.
type stravaActivity struct {
	ID               int64    `json:"id"`
	StartDate        string   `json:"start_date"`
	StartDateLocal   string   `json:"start_date_local"`
	MovingTime       *float64 `json:"moving_time"`
	Distance         *float64 `json:"distance"`
	Calories         *float64 `json:"calories"`
	HasHeartrate     bool     `json:"has_heartrate"`
	AverageHeartrate *float64 `json:"average_heartrate"`
}

// day is the UTC calendar day of the activity start.
func (s *stravaActivity) day() (time.Time, error) {
	if s.StartDate != "" {
		return models.ParseDay(s.StartDate)
	}
	return models.ParseDay(s.StartDateLocal)
}

// FetchRange implements Adapter. Pages are requested until a short page or
// the page cap; any page failure fails the whole range.
func (a *StravaAdapter) FetchRange(ctx context.Context, creds *models.OAuthCredentials, start, end time.Time) ([]models.HealthRecord, error) {
	first, last := models.Day(start), models.Day(end)
	after := first.Add(-24 * time.Hour).Unix()
	before := last.Add(48 * time.Hour).Unix()

	var raw []json.RawMessage
	for page := 1; page <= a.maxPages; page++ {
		params := url.Values{}
		params.Set("after", strconv.FormatInt(after, 10))
		params.Set("before", strconv.FormatInt(before, 10))
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(stravaPerPage))

		var batch []json.RawMessage
		endpoint := a.cfg.APIURL + "/athlete/activities?" + params.Encode()
		if _, err := a.http.getJSON(ctx, "activities", endpoint, creds.AccessToken, &batch); err != nil {
			return nil, err
		}
		raw = append(raw, batch...)
		if len(batch) < stravaPerPage {
			break
		}
	}

	return a.normalize(raw, first, last)
}

type stravaDay struct {
	activities    []json.RawMessage
	movingSeconds float64
	hasMoving     bool
	calories      float64
	hasCalories   bool
	distance      float64
	hasDistance   bool
	heartRateSum  float64
	heartRateN    int
}

func (a *StravaAdapter) normalize(raw []json.RawMessage, first, last time.Time) ([]models.HealthRecord, error) {
	days := make(map[time.Time]*stravaDay)
	for _, item := range raw {
		var act stravaActivity
		if err := json.Unmarshal(item, &act); err != nil {
			return nil, &ProviderFetchError{Provider: models.ProviderStrava, Endpoint: "activities", Err: err}
		}
		day, err := act.day()
		if err != nil || day.Before(first) || day.After(last) {
			continue
		}

		agg, ok := days[day]
		if !ok {
			agg = &stravaDay{}
			days[day] = agg
		}
		agg.activities = append(agg.activities, item)
		if act.MovingTime != nil {
			agg.movingSeconds += *act.MovingTime
			agg.hasMoving = true
		}
		if act.Calories != nil {
			agg.calories += *act.Calories
			agg.hasCalories = true
		}
		if act.Distance != nil {
			agg.distance += *act.Distance
			agg.hasDistance = true
		}
		if act.AverageHeartrate != nil && (act.HasHeartrate || *act.AverageHeartrate > 0) {
			agg.heartRateSum += *act.AverageHeartrate
			agg.heartRateN++
		}
	}

	records := make([]models.HealthRecord, 0, len(days))
	for day, agg := range days {
		rec := models.HealthRecord{Provider: models.ProviderStrava, Date: day}
		if agg.hasMoving {
			rec.ExerciseMinutes = models.Float64Ptr(agg.movingSeconds / 60)
		}
		if agg.hasCalories {
			rec.CaloriesBurned = models.Float64Ptr(agg.calories)
		}
		if agg.hasDistance {
			rec.DistanceMeters = models.Float64Ptr(agg.distance)
		}
		if agg.heartRateN > 0 {
			rec.HeartRate = models.Float64Ptr(agg.heartRateSum / float64(agg.heartRateN))
		}
		if !rec.HasMetrics() {
			continue
		}
		if payload, err := json.Marshal(agg.activities); err == nil {
			rec.RawPayload = payload
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}
