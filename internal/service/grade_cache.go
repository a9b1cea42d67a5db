package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/observability"
)

// CourseGradeCache stores computed course grades per (course, student).
type CourseGradeCache interface {
	Get(ctx context.Context, courseID, studentID uint) (dto.CourseGradeResponse, bool)
	Set(ctx context.Context, response dto.CourseGradeResponse)
	InvalidateStudent(ctx context.Context, courseID, studentID uint)
	InvalidateCourse(ctx context.Context, courseID uint)
}

type redisGradeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCourseGradeCache returns a Redis backed cache. A nil client yields a
// cache that never hits.
func NewCourseGradeCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) CourseGradeCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisGradeCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "course_grade_cache").Logger(),
	}
}

func courseGradeKey(courseID, studentID uint) string {
	return fmt.Sprintf("grades:course:%d:student:%d", courseID, studentID)
}

func (c *redisGradeCache) Get(ctx context.Context, courseID, studentID uint) (dto.CourseGradeResponse, bool) {
	if c.client == nil {
		return dto.CourseGradeResponse{}, false
	}

	cached, err := c.client.Get(ctx, courseGradeKey(courseID, studentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read course grade cache")
		}
		observability.GradeCache().WithLabelValues("miss").Inc()
		return dto.CourseGradeResponse{}, false
	}

	var response dto.CourseGradeResponse
	if err := sonic.Unmarshal(cached, &response); err != nil {
		c.logger.Warn().Err(err).Msg("discarding malformed course grade cache entry")
		observability.GradeCache().WithLabelValues("miss").Inc()
		return dto.CourseGradeResponse{}, false
	}

	observability.GradeCache().WithLabelValues("hit").Inc()
	response.CacheHit = true
	return response, true
}

func (c *redisGradeCache) Set(ctx context.Context, response dto.CourseGradeResponse) {
	if c.client == nil {
		return
	}

	response.CacheHit = false
	payload, err := sonic.Marshal(response)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode course grade")
		return
	}
	if err := c.client.Set(ctx, courseGradeKey(response.CourseID, response.StudentID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store course grade cache")
	}
}

func (c *redisGradeCache) InvalidateStudent(ctx context.Context, courseID, studentID uint) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, courseGradeKey(courseID, studentID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("course_id", courseID).Uint("student_id", studentID).Msg("failed to invalidate course grade")
	}
}

func (c *redisGradeCache) InvalidateCourse(ctx context.Context, courseID uint) {
	if c.client == nil {
		return
	}

	pattern := fmt.Sprintf("grades:course:%d:student:*", courseID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to scan course grade cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to invalidate course grades")
	}
}
