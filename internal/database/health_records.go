// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

// HealthRecordStore persists canonical daily records keyed by
// (user_id, provider, date).
type HealthRecordStore struct {
	db *DB
}

const healthRecordColumns = `user_id, provider, date, weight, steps, calories_burned, calories_intake,
	exercise_minutes, active_minutes, sleep_minutes, heart_rate, resting_heart_rate,
	distance_meters, water_ml, raw_payload`

const upsertHealthRecordQuery = `INSERT INTO health_records (` + healthRecordColumns + `, synced_at)
	VALUES (?, ?, CAST(? AS DATE), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, provider, date) DO UPDATE SET
		weight = EXCLUDED.weight,
		steps = EXCLUDED.steps,
		calories_burned = EXCLUDED.calories_burned,
		calories_intake = EXCLUDED.calories_intake,
		exercise_minutes = EXCLUDED.exercise_minutes,
		active_minutes = EXCLUDED.active_minutes,
		sleep_minutes = EXCLUDED.sleep_minutes,
		heart_rate = EXCLUDED.heart_rate,
		resting_heart_rate = EXCLUDED.resting_heart_rate,
		distance_meters = EXCLUDED.distance_meters,
		water_ml = EXCLUDED.water_ml,
		raw_payload = EXCLUDED.raw_payload,
		synced_at = EXCLUDED.synced_at`

// BulkUpsert writes records in one transaction. A record for an existing
// (user, provider, day) replaces the stored row entirely. Duplicate keys
// within the batch keep the last occurrence. It returns the number of rows
// written.
func (s *HealthRecordStore) BulkUpsert(ctx context.Context, records []models.HealthRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	records = dedupeRecords(records)

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertHealthRecordQuery)
	if err != nil {
		rollbackQuietly(tx)
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer closeWithLog(stmt, "health record statement")

	syncedAt := time.Now().UTC()
	for i := range records {
		r := &records[i]
		var steps sql.NullInt64
		if r.Steps != nil {
			steps = sql.NullInt64{Int64: int64(*r.Steps), Valid: true}
		}
		var raw sql.NullString
		if len(r.RawPayload) > 0 {
			raw = sql.NullString{String: string(r.RawPayload), Valid: true}
		}

		_, err := stmt.ExecContext(ctx,
			r.UserID, string(r.Provider), r.DateKey(),
			nullableFloat(r.Weight), steps, nullableFloat(r.CaloriesBurned), nullableFloat(r.CaloriesIntake),
			nullableFloat(r.ExerciseMinutes), nullableFloat(r.ActiveMinutes), nullableFloat(r.SleepMinutes),
			nullableFloat(r.HeartRate), nullableFloat(r.RestingHeartRate),
			nullableFloat(r.DistanceMeters), nullableFloat(r.WaterMilliliters), raw, syncedAt,
		)
		if err != nil {
			rollbackQuietly(tx)
			return 0, fmt.Errorf("failed to upsert health record %s/%s/%s: %w", r.UserID, r.Provider, r.DateKey(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit health records: %w", err)
	}
	return len(records), nil
}

// QueryRange returns the user's records dated within [start, end] by
// calendar day, most recent first.
func (s *HealthRecordStore) QueryRange(ctx context.Context, userID string, start, end time.Time) ([]models.HealthRecord, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+healthRecordColumns+` FROM health_records
		WHERE user_id = ? AND date BETWEEN CAST(? AS DATE) AND CAST(? AS DATE)
		ORDER BY date DESC, provider ASC`,
		userID, start.UTC().Format(models.DateLayout), end.UTC().Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query health records: %w", err)
	}
	defer closeWithLog(rows, "health record rows")

	out := make([]models.HealthRecord, 0)
	for rows.Next() {
		var (
			r                                                      models.HealthRecord
			provider                                               string
			steps                                                  sql.NullInt64
			weight, burned, intake, exercise, active, sleep, heart sql.NullFloat64
			resting, distance, water                               sql.NullFloat64
			raw                                                    sql.NullString
		)
		if err := rows.Scan(&r.UserID, &provider, &r.Date, &weight, &steps, &burned, &intake,
			&exercise, &active, &sleep, &heart, &resting, &distance, &water, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan health record: %w", err)
		}

		r.Provider = models.Provider(provider)
		r.Date = models.Day(r.Date)
		if steps.Valid {
			r.Steps = models.IntPtr(int(steps.Int64))
		}
		r.Weight = floatPtr(weight)
		r.CaloriesBurned = floatPtr(burned)
		r.CaloriesIntake = floatPtr(intake)
		r.ExerciseMinutes = floatPtr(exercise)
		r.ActiveMinutes = floatPtr(active)
		r.SleepMinutes = floatPtr(sleep)
		r.HeartRate = floatPtr(heart)
		r.RestingHeartRate = floatPtr(resting)
		r.DistanceMeters = floatPtr(distance)
		r.WaterMilliliters = floatPtr(water)
		if raw.Valid {
			r.RawPayload = []byte(raw.String)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health records: %w", err)
	}
	return out, nil
}

func dedupeRecords(records []models.HealthRecord) []models.HealthRecord {
	index := make(map[string]int, len(records))
	out := make([]models.HealthRecord, 0, len(records))
	for _, r := range records {
		key := r.UserID + "|" + string(r.Provider) + "|" + r.DateKey()
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return models.Float64Ptr(nf.Float64)
}
