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
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/models"
)

// LoseItAdapter talks to the Lose It! partner API. Token calls send the
// client credentials inline in a form body. There is no revocation endpoint.
type LoseItAdapter struct {
	cfg      config.ProviderConfig
	http     *httpClient
	now      func() time.Time
	stateTTL time.Duration
}

// NewLoseItAdapter creates a Lose It! adapter.
func NewLoseItAdapter(cfg config.ProviderConfig, opts Options) *LoseItAdapter {
	opts = opts.withDefaults()
	return &LoseItAdapter{
		cfg:      cfg,
		http:     newHTTPClient(models.ProviderLoseIt, opts),
		now:      opts.Now,
		stateTTL: opts.StateTTL,
	}
}

// Provider implements Adapter.
func (a *LoseItAdapter) Provider() models.Provider { return models.ProviderLoseIt }

// BuildAuthorizationURL implements Adapter.
func (a *LoseItAdapter) BuildAuthorizationURL(state string) AuthorizationURL {
	params := url.Values{}
	params.Set("client_id", a.cfg.ClientID)
	params.Set("redirect_uri", a.cfg.RedirectURI)
	params.Set("response_type", "code")
	if a.cfg.Scopes != "" {
		params.Set("scope", a.cfg.Scopes)
	}
	params.Set("state", state)

	return AuthorizationURL{
		URL:       a.cfg.AuthURL + "?" + params.Encode(),
		State:     state,
		ExpiresAt: a.now().Add(a.stateTTL),
	}
}

// ExchangeCode implements Adapter.
func (a *LoseItAdapter) ExchangeCode(ctx context.Context, code string) (*models.OAuthCredentials, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.cfg.RedirectURI)

	token, err := a.tokenRequest(ctx, "token_exchange", form)
	if err != nil {
		return nil, exchangeError(models.ProviderLoseIt, err)
	}
	return token.credentials(a.now(), false, ""), nil
}

// RefreshToken implements Adapter.
func (a *LoseItAdapter) RefreshToken(ctx context.Context, refreshToken string) (*models.OAuthCredentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	token, err := a.tokenRequest(ctx, "token_refresh", form)
	if err != nil {
		return nil, refreshError(models.ProviderLoseIt, err)
	}
	return token.credentials(a.now(), false, refreshToken), nil
}

func (a *LoseItAdapter) tokenRequest(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	encoded := form.Encode()
	return a.http.postToken(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

// Revoke is a no-op; Lose It! tokens simply expire.
func (a *LoseItAdapter) Revoke(_ context.Context, _ *models.OAuthCredentials) error {
	return nil
}

type loseItNutritionEntry struct {
	Date     string   `json:"date"`
	Calories *float64 `json:"calories"`
	WaterML  *float64 `json:"water_ml"`
}

type loseItWeightEntry struct {
	Date   string   `json:"date"`
	Weight *float64 `json:"weight"`
}

type loseItExerciseEntry struct {
	Date     string   `json:"date"`
	Minutes  *float64 `json:"minutes"`
	Calories *float64 `json:"calories"`
}

type loseItDay struct {
	record  models.HealthRecord
	sources map[string][]json.RawMessage
}

// FetchRange implements Adapter. Nutrition, weight and exercise are fetched
// independently and merged by date; the range fails only if all three fail.
func (a *LoseItAdapter) FetchRange(ctx context.Context, creds *models.OAuthCredentials, start, end time.Time) ([]models.HealthRecord, error) {
	first, last := models.Day(start), models.Day(end)
	params := url.Values{}
	params.Set("start_date", first.Format(models.DateLayout))
	params.Set("end_date", last.Format(models.DateLayout))
	query := "?" + params.Encode()

	days := make(map[string]*loseItDay)
	dayFor := func(date string) *loseItDay {
		t, err := models.ParseDay(date)
		if err != nil || t.Before(first) || t.After(last) {
			return nil
		}
		key := t.Format(models.DateLayout)
		d, ok := days[key]
		if !ok {
			d = &loseItDay{
				record:  models.HealthRecord{Provider: models.ProviderLoseIt, Date: t},
				sources: make(map[string][]json.RawMessage),
			}
			days[key] = d
		}
		return d
	}

	var lastErr error
	failures := 0

	var nutrition struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if _, err := a.http.getJSON(ctx, "nutrition", a.cfg.APIURL+"/v1/nutrition"+query, creds.AccessToken, &nutrition); err != nil {
		failures++
		lastErr = err
		a.logSourceFailure(ctx, "nutrition", err)
	} else {
		for _, raw := range nutrition.Entries {
			var e loseItNutritionEntry
			if json.Unmarshal(raw, &e) != nil || (e.Calories == nil && e.WaterML == nil) {
				continue
			}
			d := dayFor(e.Date)
			if d == nil {
				continue
			}
			d.sources["nutrition"] = append(d.sources["nutrition"], raw)
			addTo(&d.record.CaloriesIntake, e.Calories)
			addTo(&d.record.WaterMilliliters, e.WaterML)
		}
	}

	var weight struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if _, err := a.http.getJSON(ctx, "weight", a.cfg.APIURL+"/v1/weight"+query, creds.AccessToken, &weight); err != nil {
		failures++
		lastErr = err
		a.logSourceFailure(ctx, "weight", err)
	} else {
		for _, raw := range weight.Entries {
			var e loseItWeightEntry
			if json.Unmarshal(raw, &e) != nil || e.Weight == nil {
				continue
			}
			d := dayFor(e.Date)
			if d == nil {
				continue
			}
			d.sources["weight"] = append(d.sources["weight"], raw)
			d.record.Weight = models.Float64Ptr(*e.Weight)
		}
	}

	var exercise struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if _, err := a.http.getJSON(ctx, "exercise", a.cfg.APIURL+"/v1/exercise"+query, creds.AccessToken, &exercise); err != nil {
		failures++
		lastErr = err
		a.logSourceFailure(ctx, "exercise", err)
	} else {
		for _, raw := range exercise.Entries {
			var e loseItExerciseEntry
			if json.Unmarshal(raw, &e) != nil || (e.Minutes == nil && e.Calories == nil) {
				continue
			}
			d := dayFor(e.Date)
			if d == nil {
				continue
			}
			d.sources["exercise"] = append(d.sources["exercise"], raw)
			addTo(&d.record.ExerciseMinutes, e.Minutes)
			addTo(&d.record.CaloriesBurned, e.Calories)
		}
	}

	if failures == 3 {
		return nil, lastErr
	}

	records := make([]models.HealthRecord, 0, len(days))
	for _, d := range days {
		if !d.record.HasMetrics() {
			continue
		}
		if payload, err := json.Marshal(d.sources); err == nil {
			d.record.RawPayload = payload
		}
		records = append(records, d.record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (a *LoseItAdapter) logSourceFailure(ctx context.Context, source string, err error) {
	logging.Ctx(ctx).Warn().Err(err).
		Str("provider", string(models.ProviderLoseIt)).
		Str("source", source).
		Msg("Lose It! source fetch failed, continuing with remaining sources")
}

// addTo accumulates v into *dst, allocating on first use. Nil v is ignored.
func addTo(dst **float64, v *float64) {
	if v == nil {
		return
	}
	if *dst == nil {
		*dst = models.Float64Ptr(*v)
		return
	}
	**dst += *v
}
