package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"techacademy_backend/internal/cms"
	"techacademy_backend/internal/config"
	"techacademy_backend/internal/taxonomy"
	"techacademy_backend/internal/util"
	"techacademy_backend/pkg/logger"
	"techacademy_backend/pkg/monitoring"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	courseCacheKeyPrefix   = "cms:courses:"
	taxonomyCacheKeyPrefix = "cms:taxonomy:"
	defaultCacheTTL        = 5 * time.Minute
)

const (
	TaxonomySourceAPI   = "api"
	TaxonomySourceFile  = "file"
	TaxonomySourceEmpty = "none"
)

// CMSReader CMS 读取接口，测试中可替换
type CMSReader interface {
	Configured() bool
	GetEntry(ctx context.Context, contentType, uid string, include ...string) (cms.Entry, error)
	FindEntries(ctx context.Context, contentType string, q cms.Query) ([]cms.Entry, error)
	TaxonomyTerms(ctx context.Context, taxonomyUID string) ([]map[string]any, error)
}

type CourseService struct {
	CMS    CMSReader
	Mapper *cms.Mapper
	Redis  *redis.Client
	Cfg    *config.Config
}

func NewCourseService(client CMSReader, mapper *cms.Mapper, rdb *redis.Client, cfg *config.Config) *CourseService {
	return &CourseService{
		CMS:    client,
		Mapper: mapper,
		Redis:  rdb,
		Cfg:    cfg,
	}
}

// swagger:model TaxonomyResult
type TaxonomyResult struct {
	Taxonomy     []*taxonomy.Term `json:"taxonomy"`
	TaxonomyTree []*taxonomy.Term `json:"taxonomyTree"`
	Count        int              `json:"count"`
	Source       string           `json:"source"`
	tree         *taxonomy.Tree
}

// ListCourses 按关键字搜索课程；taxonomy 非空时保留标记了该分类或其任一子分类的课程
func (s *CourseService) ListCourses(ctx context.Context, search, taxonomyUID string) ([]cms.Course, error) {
	courses, err := s.loadCourses(ctx, search, false)
	if err != nil {
		return nil, err
	}
	if taxonomyUID == "" {
		return courses, nil
	}

	tax := s.Taxonomy(ctx, s.Cfg.CMS.TaxonomyUID)
	return FilterCourses(courses, tax.tree, taxonomyUID), nil
}

// FilterCourses keeps the courses tagged with termUID or any of its descendants.
func FilterCourses(courses []cms.Course, tree *taxonomy.Tree, termUID string) []cms.Course {
	wanted := map[string]bool{termUID: true}
	if tree != nil {
		wanted = tree.DescendantSet(termUID)
	}

	filtered := make([]cms.Course, 0, len(courses))
	for _, c := range courses {
		for _, uid := range c.TaxonomyUIDs() {
			if wanted[uid] {
				filtered = append(filtered, c)
				break
			}
		}
	}
	return filtered
}

func (s *CourseService) loadCourses(ctx context.Context, search string, refresh bool) ([]cms.Course, error) {
	key := courseCacheKeyPrefix + search
	var courses []cms.Course
	if !refresh && s.cacheGet(ctx, "courses", key, &courses) {
		return courses, nil
	}

	entries, err := s.CMS.FindEntries(ctx, cms.ContentTypeCourse, cms.Query{
		Include: s.Mapper.ReferenceKeys(),
		Search:  search,
	})
	if err != nil {
		return nil, cmsError(err, util.ErrCourseNotFound)
	}

	courses = make([]cms.Course, 0, len(entries))
	for _, e := range entries {
		courses = append(courses, s.Mapper.MapCourse(e))
	}
	s.cacheSet(ctx, key, courses)
	return courses, nil
}

// GetCourse 返回展开了模块引用的原始课程条目
func (s *CourseService) GetCourse(ctx context.Context, courseUID string) (cms.Entry, error) {
	entry, err := s.CMS.GetEntry(ctx, cms.ContentTypeCourse, courseUID, s.Mapper.ReferenceKeys()...)
	if err != nil {
		return nil, cmsError(err, util.ErrCourseNotFound)
	}
	return entry, nil
}

// GetEntry 返回映射后的课程，模块已排序
func (s *CourseService) GetEntry(ctx context.Context, entryUID string) (*cms.Course, error) {
	entry, err := s.CMS.GetEntry(ctx, cms.ContentTypeCourse, entryUID, s.Mapper.ReferenceKeys()...)
	if err != nil {
		return nil, cmsError(err, util.ErrEntryNotFound)
	}
	course := s.Mapper.MapCourse(entry)
	return &course, nil
}

// ModuleCount 课程当前的模块数，进度计算在请求未带总数时使用
func (s *CourseService) ModuleCount(ctx context.Context, courseUID string) (int, error) {
	course, err := s.GetEntry(ctx, courseUID)
	if err != nil {
		return 0, err
	}
	return course.ModuleCount(), nil
}

func (s *CourseService) ListModules(ctx context.Context) ([]cms.Module, error) {
	entries, err := s.CMS.FindEntries(ctx, cms.ContentTypeModule, cms.Query{})
	if err != nil {
		return nil, cmsError(err, util.ErrEntryNotFound)
	}
	return s.Mapper.MapModules(entries), nil
}

// Taxonomy 获取分类术语并构建树。API 不可用时读取本地 JSON 文件，
// 两者都失败时返回空结果而不是错误
func (s *CourseService) Taxonomy(ctx context.Context, taxonomyUID string) *TaxonomyResult {
	if taxonomyUID == "" {
		taxonomyUID = s.Cfg.CMS.TaxonomyUID
	}
	terms, source := s.loadTerms(ctx, taxonomyUID, false)
	return newTaxonomyResult(terms, source)
}

func newTaxonomyResult(terms []taxonomy.RawTerm, source string) *TaxonomyResult {
	tree := taxonomy.BuildTermTree(terms)
	roots := tree.Roots
	if roots == nil {
		roots = []*taxonomy.Term{}
	}
	return &TaxonomyResult{
		Taxonomy:     tree.Flat,
		TaxonomyTree: roots,
		Count:        len(tree.Flat),
		Source:       source,
		tree:         tree,
	}
}

func (s *CourseService) loadTerms(ctx context.Context, taxonomyUID string, refresh bool) ([]taxonomy.RawTerm, string) {
	key := taxonomyCacheKeyPrefix + taxonomyUID
	var terms []taxonomy.RawTerm
	if !refresh && s.cacheGet(ctx, "taxonomy", key, &terms) {
		return terms, TaxonomySourceAPI
	}

	raw, err := s.CMS.TaxonomyTerms(ctx, taxonomyUID)
	if err == nil {
		terms = make([]taxonomy.RawTerm, 0, len(raw))
		for _, t := range raw {
			terms = append(terms, taxonomy.RawTerm(t))
		}
		s.cacheSet(ctx, key, terms)
		return terms, TaxonomySourceAPI
	}
	logger.Log.Warn("Taxonomy API unavailable, using local file",
		zap.String("taxonomy", taxonomyUID),
		zap.Error(err),
	)

	terms, err = loadTermsFile(s.Cfg.CMS.TaxonomyFile, taxonomyUID)
	if err != nil {
		logger.Log.Error("Failed to load taxonomy file", zap.String("file", s.Cfg.CMS.TaxonomyFile), zap.Error(err))
		return []taxonomy.RawTerm{}, TaxonomySourceEmpty
	}
	return terms, TaxonomySourceFile
}

// taxonomyFile 导出文件格式为 {taxonomy:{uid}, terms:[...]} 或仅有 terms
type taxonomyFile struct {
	Taxonomy *struct {
		UID string `json:"uid"`
	} `json:"taxonomy"`
	Terms []taxonomy.RawTerm `json:"terms"`
}

func loadTermsFile(path, taxonomyUID string) ([]taxonomy.RawTerm, error) {
	if path == "" {
		return nil, errors.New("taxonomy file not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f taxonomyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if f.Taxonomy != nil && f.Taxonomy.UID != "" && f.Taxonomy.UID != taxonomyUID {
		return nil, fmt.Errorf("%s holds taxonomy %q, not %q", path, f.Taxonomy.UID, taxonomyUID)
	}
	if f.Terms == nil {
		return []taxonomy.RawTerm{}, nil
	}
	return f.Terms, nil
}

// WarmCache 定时任务调用，刷新分类术语与课程列表缓存
func (s *CourseService) WarmCache(ctx context.Context) {
	if s.Redis == nil || !s.CMS.Configured() {
		return
	}
	terms, source := s.loadTerms(ctx, s.Cfg.CMS.TaxonomyUID, true)
	courses, err := s.loadCourses(ctx, "", true)
	if err != nil {
		logger.Log.Warn("Failed to warm course cache", zap.Error(err))
		return
	}
	logger.Log.Info("CMS cache warmed",
		zap.Int("terms", len(terms)),
		zap.String("termSource", source),
		zap.Int("courses", len(courses)),
	)
}

func (s *CourseService) cacheTTL() time.Duration {
	if s.Cfg.CMS.CacheTTL > 0 {
		return s.Cfg.CMS.CacheTTL
	}
	return defaultCacheTTL
}

func (s *CourseService) cacheGet(ctx context.Context, kind, key string, dst interface{}) bool {
	if s.Redis == nil {
		return false
	}
	data, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		monitoring.CacheLookups.WithLabelValues(kind, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		monitoring.CacheLookups.WithLabelValues(kind, "miss").Inc()
		return false
	}
	monitoring.CacheLookups.WithLabelValues(kind, "hit").Inc()
	return true
}

func (s *CourseService) cacheSet(ctx context.Context, key string, v interface{}) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, data, s.cacheTTL()).Err(); err != nil {
		logger.Log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// cmsError 将 CMS 错误转换为业务错误：不存在映射为 notFound，其余为上游不可用
func cmsError(err, notFound error) error {
	if errors.Is(err, cms.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%w: %w", util.ErrCMSUnavailable, err)
}
