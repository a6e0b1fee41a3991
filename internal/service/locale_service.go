package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"treehub/internal/model"
	"treehub/internal/repository"
	"treehub/pkg/log"

	"github.com/go-redis/redis/v8"
)

// LocaleService 提供本地化文案查询，按 culture 回退链合并：
// "zh-CN" 先取 "zh-CN"，缺的键回退 "zh"，再缺回退默认 culture。
// 合并结果整表缓存在 Redis，写入方更新后靠 TTL 过期收敛。
type LocaleService interface {
	// GetStrings 返回指定 culture 合并后的完整文案表。
	GetStrings(culture string) (map[string]string, error)
	// GetString 查询单个键，找不到时返回键名本身，保证界面不出现空串。
	GetString(culture, name string) (string, error)
	Set(culture, name, value string) error
}

type localeService struct {
	localeRepo     repository.LocaleRepository
	rdb            *redis.Client
	defaultCulture string
	cacheTTL       time.Duration
}

// NewLocaleService 创建本地化服务。rdb 可为 nil，此时不启用缓存。
func NewLocaleService(localeRepo repository.LocaleRepository, rdb *redis.Client, defaultCulture string, cacheTTL time.Duration) LocaleService {
	if defaultCulture == "" {
		defaultCulture = "en"
	}
	return &localeService{
		localeRepo:     localeRepo,
		rdb:            rdb,
		defaultCulture: defaultCulture,
		cacheTTL:       cacheTTL,
	}
}

func (s *localeService) GetStrings(culture string) (map[string]string, error) {
	if s.localeRepo == nil {
		return nil, ErrInternal
	}

	chain := s.fallbackChain(culture)
	cacheKey := "locale_strings:" + strings.Join(chain, ",")

	if cached, ok := s.readCache(cacheKey); ok {
		return cached, nil
	}

	resources, err := s.localeRepo.FindByCultures(chain)
	if err != nil {
		return nil, err
	}

	// chain 按从“最不具体”到“最具体”的顺序覆盖，后写的赢
	rank := make(map[string]int, len(chain))
	for i, c := range chain {
		rank[c] = len(chain) - i
	}
	best := make(map[string]int, len(resources))
	merged := make(map[string]string, len(resources))
	for _, res := range resources {
		if rank[res.Culture] >= best[res.Name] {
			best[res.Name] = rank[res.Culture]
			merged[res.Name] = res.Value
		}
	}

	s.writeCache(cacheKey, merged)
	return merged, nil
}

func (s *localeService) GetString(culture, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidInput
	}

	table, err := s.GetStrings(culture)
	if err != nil {
		return "", err
	}
	if value, ok := table[name]; ok {
		return value, nil
	}
	return name, nil
}

func (s *localeService) Set(culture, name, value string) error {
	if s.localeRepo == nil {
		return ErrInternal
	}

	culture = strings.TrimSpace(culture)
	name = strings.TrimSpace(name)
	if culture == "" || name == "" {
		return ErrInvalidInput
	}

	return s.localeRepo.Upsert(&model.LocaleResource{
		Culture: culture,
		Name:    name,
		Value:   value,
	})
}

// fallbackChain 生成查询用的 culture 列表，从最不具体到最具体排列：
// "zh-CN" -> [en(默认), zh, zh-CN]。
func (s *localeService) fallbackChain(culture string) []string {
	chain := []string{s.defaultCulture}
	culture = strings.TrimSpace(culture)
	if culture == "" || culture == s.defaultCulture {
		return chain
	}

	if i := strings.Index(culture, "-"); i > 0 {
		if base := culture[:i]; base != s.defaultCulture {
			chain = append(chain, base)
		}
	}
	return append(chain, culture)
}

func (s *localeService) readCache(key string) (map[string]string, bool) {
	if s.rdb == nil {
		return nil, false
	}

	raw, err := s.rdb.Get(context.Background(), key).Result()
	if err != nil {
		// redis.Nil 是未命中，其他错误降级为未命中并告警
		if err != redis.Nil {
			log.Warnf("LocaleService: cache read failed for %s: %v", key, err)
		}
		return nil, false
	}

	var cached map[string]string
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, false
	}
	return cached, true
}

func (s *localeService) writeCache(key string, table map[string]string) {
	if s.rdb == nil {
		return
	}

	raw, err := json.Marshal(table)
	if err != nil {
		return
	}
	if err := s.rdb.Set(context.Background(), key, raw, s.cacheTTL).Err(); err != nil {
		log.Warnf("LocaleService: cache write failed for %s: %v", key, err)
	}
}
