package repository

import (
	"context"
	"encoding/json"
	"time"

	"grading_backend/internal/model"
	"grading_backend/pkg/logger"
	"grading_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const assessmentCacheKeyPrefix = "assessment:definition:"

type cachedAssessment struct {
	Assessment model.Assessment           `json:"assessment"`
	Questions  []model.AssessmentQuestion `json:"questions"`
}

// CachedAssessmentProvider 带 Redis 读缓存的测评定义加载器
type CachedAssessmentProvider struct {
	Repo  *AssessmentRepository
	Redis *redis.Client
	TTL   time.Duration
}

func NewCachedAssessmentProvider(repo *AssessmentRepository, rdb *redis.Client, ttl time.Duration) *CachedAssessmentProvider {
	return &CachedAssessmentProvider{Repo: repo, Redis: rdb, TTL: ttl}
}

func (p *CachedAssessmentProvider) GetAssessmentWithQuestions(ctx context.Context, id string) (*model.AssessmentWithQuestions, error) {
	if p.Redis == nil {
		return p.Repo.GetAssessmentWithQuestions(ctx, id)
	}

	key := assessmentCacheKeyPrefix + id
	val, err := p.Redis.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		monitoring.AssessmentCacheLookups.WithLabelValues("miss").Inc()
	case err != nil:
		monitoring.AssessmentCacheLookups.WithLabelValues("error").Inc()
		logger.Log.Warn("读取测评缓存失败", zap.String("assessmentID", id), zap.Error(err))
	default:
		var entry cachedAssessment
		if err := json.Unmarshal([]byte(val), &entry); err == nil {
			monitoring.AssessmentCacheLookups.WithLabelValues("hit").Inc()
			return AssembleAssessment(&entry.Assessment, entry.Questions)
		}
		monitoring.AssessmentCacheLookups.WithLabelValues("error").Inc()
		logger.Log.Warn("测评缓存内容损坏", zap.String("assessmentID", id))
	}

	a, rows, err := p.Repo.LoadAssessmentRows(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(cachedAssessment{Assessment: *a, Questions: rows})
	if err := p.Redis.Set(ctx, key, payload, p.TTL).Err(); err != nil {
		logger.Log.Warn("写入测评缓存失败", zap.String("assessmentID", id), zap.Error(err))
	}
	return AssembleAssessment(a, rows)
}

func (p *CachedAssessmentProvider) Invalidate(ctx context.Context, id string) {
	if p.Redis == nil {
		return
	}
	if err := p.Redis.Del(ctx, assessmentCacheKeyPrefix+id).Err(); err != nil {
		logger.Log.Warn("清除测评缓存失败", zap.String("assessmentID", id), zap.Error(err))
	}
}
