package service

import (
	"context"
	"errors"
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/util"
	"techacademy_backend/pkg/logger"
	"techacademy_backend/pkg/monitoring"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModuleCounter 返回课程当前的模块数
type ModuleCounter interface {
	ModuleCount(ctx context.Context, courseUID string) (int, error)
}

// PlanSyncer 模块完成后同步培训计划
type PlanSyncer interface {
	SyncModuleCompletion(ctx context.Context, traineeID, moduleUID string) (int, error)
}

type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	UserRepo     *repository.UserRepository
	Courses      ModuleCounter
	Plans        PlanSyncer
	MaxRetries   uint64
	now          func() time.Time
}

func NewProgressService(progressRepo *repository.ProgressRepository, userRepo *repository.UserRepository, courses ModuleCounter, plans PlanSyncer) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		UserRepo:     userRepo,
		Courses:      courses,
		Plans:        plans,
		MaxRetries:   defaultMaxRetries,
		now:          time.Now,
	}
}

// Get 无记录时返回未开始的零值。有记录时按当前模块数重新计算百分比（不落库），
// totalModules <= 0 时向 CMS 查询模块数，查询失败则保留已存的百分比
func (s *ProgressService) Get(ctx context.Context, userID, courseUID string, totalModules int) (*model.CourseProgress, error) {
	progress, err := s.ProgressRepo.FindByUserAndCourse(userID, courseUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewCourseProgress(userID, courseUID), nil
	}
	if err != nil {
		return nil, err
	}

	known := totalModules > 0
	if !known {
		totalModules, known = s.resolveTotal(ctx, courseUID)
	}
	if known {
		progress.Recompute(totalModules, s.now())
	}
	return progress, nil
}

// CompleteModule 标记模块完成。并发写入通过版本号检测，冲突时重新读取后重试，
// 重试耗尽返回 util.ErrProgressConflict
func (s *ProgressService) CompleteModule(ctx context.Context, userID, courseUID, moduleUID string, totalModules int) (*model.CourseProgress, error) {
	known := totalModules > 0
	if !known {
		totalModules, known = s.resolveTotal(ctx, courseUID)
	}

	var saved *model.CourseProgress
	err := retry.Do(ctx, versionBackoff(s.MaxRetries), func(ctx context.Context) error {
		progress, err := s.ProgressRepo.FindByUserAndCourse(userID, courseUID)
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}
		if isNew {
			progress = model.NewCourseProgress(userID, courseUID)
		}

		total := totalModules
		if !known {
			// 模块总数未知时以已完成数代替
			total = len(progress.CompletedModules)
			if !progress.HasCompleted(moduleUID) {
				total++
			}
		}
		progress.CompleteModule(moduleUID, total, s.now())

		if isNew {
			err = s.ProgressRepo.Create(progress)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				err = repository.ErrVersionConflict
			}
		} else {
			err = s.ProgressRepo.UpdateVersioned(progress)
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			monitoring.ProgressConflicts.WithLabelValues("course_progress").Inc()
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		saved = progress
		return nil
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		logger.Log.Warn("Progress update retries exhausted",
			zap.String("userId", userID),
			zap.String("courseUid", courseUID),
		)
		return nil, util.ErrProgressConflict
	}
	if err != nil {
		return nil, err
	}
	monitoring.ModuleCompletions.Inc()

	if s.Plans != nil {
		if _, err := s.Plans.SyncModuleCompletion(ctx, userID, moduleUID); err != nil {
			logger.Log.Error("Failed to sync training plans",
				zap.String("userId", userID),
				zap.String("moduleUid", moduleUID),
				zap.Error(err),
			)
		}
	}
	return saved, nil
}

// resolveTotal 第二个返回值表示 CMS 是否给出了模块数，课程没有模块时为 (0, true)
func (s *ProgressService) resolveTotal(ctx context.Context, courseUID string) (int, bool) {
	if s.Courses == nil {
		return 0, false
	}
	total, err := s.Courses.ModuleCount(ctx, courseUID)
	if err != nil {
		logger.Log.Warn("Failed to resolve module count", zap.String("courseUid", courseUID), zap.Error(err))
		return 0, false
	}
	return total, true
}

type CourseProgressItem struct {
	CourseUID        string     `json:"courseUid"`
	Progress         int        `json:"progress"`
	CompletedModules int        `json:"completedModules"`
	LastAccessedAt   *time.Time `json:"lastAccessedAt"`
	StartedAt        *time.Time `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt"`
}

// swagger:model TraineeCourseProgress
type TraineeCourseProgress struct {
	TraineeID        string               `json:"traineeId"`
	TraineeName      string               `json:"traineeName"`
	TraineeEmail     string               `json:"traineeEmail"`
	TotalCourses     int                  `json:"totalCourses"`
	TotalModules     int                  `json:"totalModules"`
	CompletedModules int                  `json:"completedModules"`
	AverageProgress  int                  `json:"averageProgress"`
	Courses          []CourseProgressItem `json:"courses"`
}

// AdminReport 所有有学习记录的学员的课程进度，课程按最近访问倒序
func (s *ProgressService) AdminReport() ([]TraineeCourseProgress, error) {
	records, err := s.ProgressRepo.ListAll()
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]model.CourseProgress)
	var ids []string
	for _, r := range records {
		if _, seen := byUser[r.UserID]; !seen {
			ids = append(ids, r.UserID)
		}
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	trainees, err := s.UserRepo.FindTraineesByIDs(ids)
	if err != nil {
		return nil, err
	}

	report := make([]TraineeCourseProgress, 0, len(trainees))
	for _, t := range trainees {
		item := TraineeCourseProgress{
			TraineeID:    t.UserID,
			TraineeName:  t.FullName(),
			TraineeEmail: t.Email,
			Courses:      []CourseProgressItem{},
		}
		sum := 0
		for _, p := range byUser[t.UserID] {
			completed := len(p.CompletedModules)
			item.TotalCourses++
			item.TotalModules += completed
			item.CompletedModules += completed
			sum += p.Progress
			item.Courses = append(item.Courses, CourseProgressItem{
				CourseUID:        p.CourseUID,
				Progress:         p.Progress,
				CompletedModules: completed,
				LastAccessedAt:   p.LastAccessedAt,
				StartedAt:        p.StartedAt,
				CompletedAt:      p.CompletedAt,
			})
		}
		if item.TotalCourses > 0 {
			item.AverageProgress = model.Percentage(sum, item.TotalCourses*100)
		}
		report = append(report, item)
	}
	return report, nil
}
