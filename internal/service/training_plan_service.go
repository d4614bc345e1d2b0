package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const (
	defaultMaxRetries = 5
	retryInterval     = 20 * time.Millisecond
)

func versionBackoff(maxRetries uint64) retry.Backoff {
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	return retry.WithMaxRetries(maxRetries, retry.NewConstant(retryInterval))
}

type TrainingPlanService struct {
	PlanRepo   *repository.TrainingPlanRepository
	UserRepo   *repository.UserRepository
	MaxRetries uint64
}

func NewTrainingPlanService(planRepo *repository.TrainingPlanRepository, userRepo *repository.UserRepository) *TrainingPlanService {
	return &TrainingPlanService{
		PlanRepo:   planRepo,
		UserRepo:   userRepo,
		MaxRetries: defaultMaxRetries,
	}
}

type PlanModuleInput struct {
	ModuleUID   string `json:"moduleUid"`
	ModuleName  string `json:"moduleName"`
	TrainerName string `json:"trainerName"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type CreatePlanRequest struct {
	PlanName    string            `json:"planName"`
	Description string            `json:"description"`
	TraineeID   string            `json:"traineeId"`
	TrainerID   string            `json:"trainerId"`
	Modules     []PlanModuleInput `json:"modules"`
}

var planDateLayouts = []string{time.RFC3339, util.TimeFormat, util.DateFormat}

func parsePlanDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range planDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Create 校验学员与模块后创建草稿计划
func (s *TrainingPlanService) Create(creatorID string, req CreatePlanRequest) (*model.TrainingPlan, error) {
	if strings.TrimSpace(req.PlanName) == "" || req.TraineeID == "" || len(req.Modules) == 0 {
		return nil, util.ErrPlanFieldsMissing
	}

	trainee, err := s.UserRepo.FindByUserID(req.TraineeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTraineeNotFound
		}
		return nil, err
	}
	if trainee.Role != model.Trainee {
		return nil, util.ErrNotATrainee
	}

	modules := make([]model.TrainingPlanModule, 0, len(req.Modules))
	for _, m := range req.Modules {
		start, okStart := parsePlanDate(m.StartDate)
		end, okEnd := parsePlanDate(m.EndDate)
		if strings.TrimSpace(m.ModuleName) == "" || !okStart || !okEnd {
			return nil, util.ErrPlanModuleInvalid
		}
		if !end.After(start) {
			return nil, util.ErrPlanModuleDates
		}
		modules = append(modules, model.TrainingPlanModule{
			ModuleUID:   strings.TrimSpace(m.ModuleUID),
			ModuleName:  strings.TrimSpace(m.ModuleName),
			TrainerName: strings.TrimSpace(m.TrainerName),
			StartDate:   start,
			EndDate:     end,
			Status:      model.ModulePending,
		})
	}

	plan := &model.TrainingPlan{
		PlanID:       util.NewPlanID(),
		PlanName:     strings.TrimSpace(req.PlanName),
		Description:  req.Description,
		TraineeID:    trainee.UserID,
		TraineeEmail: trainee.Email,
		Status:       model.PlanDraft,
		CreatedBy:    creatorID,
		Modules:      modules,
	}

	if req.TrainerID != "" {
		trainer, err := s.UserRepo.FindByUserID(req.TrainerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrTrainerNotFound
			}
			return nil, err
		}
		if !trainer.Role.IsAdmin() {
			return nil, util.ErrTrainerNotFound
		}
		plan.TrainerID = trainer.UserID
		plan.TrainerEmail = trainer.Email
	}

	if err := s.PlanRepo.Create(plan); err != nil {
		return nil, err
	}
	logger.Log.Info("Training plan created",
		zap.String("planId", plan.PlanID),
		zap.String("traineeId", plan.TraineeID),
		zap.Int("modules", len(plan.Modules)),
	)
	return plan, nil
}

func (s *TrainingPlanService) List() ([]model.TrainingPlan, error) {
	return s.PlanRepo.List()
}

// SyncModuleCompletion 将学员完成的模块同步到其所有包含该模块的培训计划，
// 返回实际发生变化的计划数。重复同步不会产生写入
func (s *TrainingPlanService) SyncModuleCompletion(ctx context.Context, traineeID, moduleUID string) (int, error) {
	if traineeID == "" || moduleUID == "" {
		return 0, nil
	}
	plans, err := s.PlanRepo.FindByTraineeAndModule(traineeID, moduleUID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range plans {
		changed, err := s.applyCompletion(ctx, &plans[i], moduleUID)
		if err != nil {
			return updated, fmt.Errorf("sync plan %s: %w", plans[i].PlanID, err)
		}
		if changed {
			updated++
		}
	}

	if updated > 0 {
		logger.Log.Info("Training plans synced",
			zap.String("traineeId", traineeID),
			zap.String("moduleUid", moduleUID),
			zap.Int("updated", updated),
		)
	}
	return updated, nil
}

func (s *TrainingPlanService) applyCompletion(ctx context.Context, plan *model.TrainingPlan, moduleUID string) (bool, error) {
	changed := false
	current := plan
	err := retry.Do(ctx, versionBackoff(s.MaxRetries), func(ctx context.Context) error {
		changed = current.ApplyModuleCompletion(moduleUID)
		if !changed {
			return nil
		}
		err := s.PlanRepo.SaveStatuses(current)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}

		monitoring.ProgressConflicts.WithLabelValues("training_plan").Inc()
		fresh, findErr := s.PlanRepo.FindByID(plan.ID)
		if findErr != nil {
			return findErr
		}
		current = fresh
		return retry.RetryableError(err)
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return false, util.ErrProgressConflict
	}
	if err != nil {
		return false, err
	}
	*plan = *current
	return changed, nil
}

// PlanProgress 学员视角的单个计划进度
type PlanProgress struct {
	PlanID      string           `json:"planId"`
	PlanName    string           `json:"planName"`
	Description string           `json:"description"`
	Status      model.PlanStatus `json:"status"`
	model.PlanModuleCounts
	ProgressPercentage int                        `json:"progressPercentage"`
	StartDate          time.Time                  `json:"startDate"`
	EndDate            *time.Time                 `json:"endDate"`
	Modules            []model.TrainingPlanModule `json:"modules"`
}

type PlanRef struct {
	PlanID   string           `json:"planId"`
	PlanName string           `json:"planName"`
	Status   model.PlanStatus `json:"status"`
}

// TraineePlanSummary 管理员视角按学员汇总
type TraineePlanSummary struct {
	TraineeID    string `json:"traineeId"`
	TraineeName  string `json:"traineeName"`
	TraineeEmail string `json:"traineeEmail"`
	TotalPlans   int    `json:"totalPlans"`
	model.PlanModuleCounts
	ProgressPercentage int       `json:"progressPercentage"`
	Plans              []PlanRef `json:"plans"`
}

type PlanProgressSummary struct {
	TotalTrainees   int `json:"totalTrainees"`
	TotalPlans      int `json:"totalPlans"`
	AverageProgress int `json:"averageProgress"`
}

// swagger:model PlanProgressReport
type PlanProgressReport struct {
	Progress interface{}          `json:"progress"`
	UserRole string               `json:"userRole"`
	Summary  *PlanProgressSummary `json:"summary,omitempty"`
}

// Progress 学员返回自己的计划进度，管理员返回所有学员汇总
func (s *TrainingPlanService) Progress(userID string, role model.UserRole) (*PlanProgressReport, error) {
	if role.IsAdmin() {
		return s.AdminProgress()
	}
	if role != model.Trainee {
		return nil, util.ErrPermissionDenied
	}
	progress, err := s.TraineeProgress(userID)
	if err != nil {
		return nil, err
	}
	return &PlanProgressReport{Progress: progress, UserRole: string(model.Trainee)}, nil
}

func (s *TrainingPlanService) TraineeProgress(traineeID string) ([]PlanProgress, error) {
	plans, err := s.PlanRepo.FindByTrainee(traineeID)
	if err != nil {
		return nil, err
	}

	result := make([]PlanProgress, 0, len(plans))
	for i := range plans {
		p := &plans[i]
		counts := p.Counts()
		item := PlanProgress{
			PlanID:             p.PlanID,
			PlanName:           p.PlanName,
			Description:        p.Description,
			Status:             p.Status,
			PlanModuleCounts:   counts,
			ProgressPercentage: counts.Percentage(),
			StartDate:          p.CreatedAt,
			Modules:            p.Modules,
		}
		if len(p.Modules) > 0 {
			item.StartDate = p.Modules[0].StartDate
			end := p.Modules[len(p.Modules)-1].EndDate
			item.EndDate = &end
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *TrainingPlanService) AdminProgress() (*PlanProgressReport, error) {
	plans, err := s.PlanRepo.List()
	if err != nil {
		return nil, err
	}

	byTrainee := make(map[string][]*model.TrainingPlan)
	var ids []string
	for i := range plans {
		id := plans[i].TraineeID
		if _, seen := byTrainee[id]; !seen {
			ids = append(ids, id)
		}
		byTrainee[id] = append(byTrainee[id], &plans[i])
	}

	trainees, err := s.UserRepo.FindTraineesByIDs(ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]TraineePlanSummary, 0, len(trainees))
	totalPercentage := 0
	for _, t := range trainees {
		summary := TraineePlanSummary{
			TraineeID:    t.UserID,
			TraineeName:  t.FullName(),
			TraineeEmail: t.Email,
			Plans:        []PlanRef{},
		}
		for _, p := range byTrainee[t.UserID] {
			summary.TotalPlans++
			summary.PlanModuleCounts.Add(p.Counts())
			summary.Plans = append(summary.Plans, PlanRef{PlanID: p.PlanID, PlanName: p.PlanName, Status: p.Status})
		}
		summary.ProgressPercentage = summary.PlanModuleCounts.Percentage()
		totalPercentage += summary.ProgressPercentage
		summaries = append(summaries, summary)
	}

	overview := &PlanProgressSummary{
		TotalTrainees: len(summaries),
		TotalPlans:    len(plans),
	}
	if len(summaries) > 0 {
		overview.AverageProgress = model.Percentage(totalPercentage, len(summaries)*100)
	}

	return &PlanProgressReport{
		Progress: summaries,
		UserRole: string(model.Admin),
		Summary:  overview,
	}, nil
}
