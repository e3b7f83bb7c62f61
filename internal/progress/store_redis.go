package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/platform/cache"
)

// RedisStore keeps each year progress record as a JSON document and its
// profile summary as a hash, written together in one MULTI/EXEC.
type RedisStore struct {
	cache *cache.Cache
}

// NewRedisStore creates a Redis-backed progress store.
func NewRedisStore(c *cache.Cache) (*RedisStore, error) {
	if c == nil || c.Client == nil {
		return nil, fmt.Errorf("cache client is nil")
	}
	return &RedisStore{cache: c}, nil
}

type summaryHash struct {
	TotalModules      int   `redis:"total_modules"`
	CompletedCount    int   `redis:"completed_count"`
	ApprovedCount     int   `redis:"approved_count"`
	AveragePercentage int   `redis:"average_percentage"`
	BestPercentage    int   `redis:"best_percentage"`
	WorstPercentage   int   `redis:"worst_percentage"`
	IsYearComplete    bool  `redis:"is_year_complete"`
	Version           int64 `redis:"version"`
	UpdatedAt         int64 `redis:"updated_at"` // unix nanoseconds
}

func (s *RedisStore) progressKey(studentID string, year int) string {
	return s.cache.Key("progress", studentID, strconv.Itoa(year))
}

func (s *RedisStore) summaryKey(studentID string, year int) string {
	return s.cache.Key("summary", studentID, strconv.Itoa(year))
}

func (s *RedisStore) GetYearProgress(ctx context.Context, studentID string, year int) (YearProgress, error) {
	data, err := s.cache.Client.Get(ctx, s.progressKey(studentID, year)).Bytes()
	if errors.Is(err, redis.Nil) {
		return YearProgress{}, apperr.NotFound("year progress", studentID+"/"+strconv.Itoa(year))
	}
	if err != nil {
		return YearProgress{}, apperr.Storage("get year progress", err)
	}
	return decodeYearProgress(data)
}

func (s *RedisStore) WriteYearProgress(ctx context.Context, yp YearProgress, expectedVersion int64) error {
	key := s.progressKey(yp.StudentID, yp.Year)
	skey := s.summaryKey(yp.StudentID, yp.Year)

	stored := yp.Clone()
	stored.Version = expectedVersion + 1
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode year progress: %w", err)
	}
	sm := stored.Summary

	err = s.cache.Client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			prev, err := decodeYearProgress(raw)
			if err != nil {
				return err
			}
			current = prev.Version
		}
		if current != expectedVersion {
			return apperr.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.HSet(ctx, skey, summaryHash{
				TotalModules:      stored.TotalModules,
				CompletedCount:    sm.CompletedCount,
				ApprovedCount:     sm.ApprovedCount,
				AveragePercentage: sm.AveragePercentage,
				BestPercentage:    sm.BestPercentage,
				WorstPercentage:   sm.WorstPercentage,
				IsYearComplete:    sm.IsYearComplete,
				Version:           stored.Version,
				UpdatedAt:         stored.UpdatedAt.UnixNano(),
			})
			return nil
		})
		return err
	}, key)

	if errors.Is(err, apperr.ErrVersionConflict) || errors.Is(err, redis.TxFailedErr) {
		return apperr.ErrVersionConflict
	}
	return apperr.Storage("write year progress", err)
}

func (s *RedisStore) GetProfileSummary(ctx context.Context, studentID string, year int) (ProfileSummary, error) {
	cmd := s.cache.Client.HGetAll(ctx, s.summaryKey(studentID, year))
	fields, err := cmd.Result()
	if err != nil {
		return ProfileSummary{}, apperr.Storage("get profile summary", err)
	}
	if len(fields) == 0 {
		return ProfileSummary{}, apperr.NotFound("profile summary", studentID+"/"+strconv.Itoa(year))
	}

	var h summaryHash
	if err := cmd.Scan(&h); err != nil {
		return ProfileSummary{}, apperr.Storage("decode profile summary", err)
	}
	return ProfileSummary{
		StudentID:    studentID,
		Year:         year,
		TotalModules: h.TotalModules,
		Summary: Summary{
			CompletedCount:    h.CompletedCount,
			ApprovedCount:     h.ApprovedCount,
			AveragePercentage: h.AveragePercentage,
			BestPercentage:    h.BestPercentage,
			WorstPercentage:   h.WorstPercentage,
			IsYearComplete:    h.IsYearComplete,
		},
		Version:   h.Version,
		UpdatedAt: time.Unix(0, h.UpdatedAt).UTC(),
	}, nil
}

func decodeYearProgress(data []byte) (YearProgress, error) {
	var yp YearProgress
	if err := json.Unmarshal(data, &yp); err != nil {
		return YearProgress{}, apperr.Storage("decode year progress", err)
	}
	if yp.Attempts == nil {
		yp.Attempts = make(map[string]Attempt)
	}
	return yp, nil
}
