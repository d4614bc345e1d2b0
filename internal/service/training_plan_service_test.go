package service

import (
	"context"
	"testing"

	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPlanFixture(t *testing.T) (*TrainingPlanService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	createUser(t, db, "user-t1", "t1@techacademy.com", model.Trainee)
	createUser(t, db, "user-t2", "t2@techacademy.com", model.Trainee)
	createUser(t, db, "user-a1", "a1@techacademy.com", model.Admin)
	return NewTrainingPlanService(repository.NewTrainingPlanRepository(db), repository.NewUserRepository(db)), db
}

func planRequest(traineeID string, moduleUIDs ...string) CreatePlanRequest {
	req := CreatePlanRequest{PlanName: "Onboarding", TraineeID: traineeID}
	for _, uid := range moduleUIDs {
		req.Modules = append(req.Modules, PlanModuleInput{
			ModuleUID:  uid,
			ModuleName: "Module " + uid,
			StartDate:  "2026-01-01",
			EndDate:    "2026-01-05T00:00:00Z",
		})
	}
	return req
}

func TestTrainingPlanService_CreateValidation(t *testing.T) {
	svc, _ := newPlanFixture(t)

	_, err := svc.Create("user-a1", CreatePlanRequest{PlanName: "x", TraineeID: "user-t1"})
	assert.ErrorIs(t, err, util.ErrPlanFieldsMissing)

	_, err = svc.Create("user-a1", planRequest("nobody", "m1"))
	assert.ErrorIs(t, err, util.ErrTraineeNotFound)

	_, err = svc.Create("user-a1", planRequest("user-a1", "m1"))
	assert.ErrorIs(t, err, util.ErrNotATrainee)

	req := planRequest("user-t1", "m1")
	req.Modules[0].EndDate = ""
	_, err = svc.Create("user-a1", req)
	assert.ErrorIs(t, err, util.ErrPlanModuleInvalid)

	req = planRequest("user-t1", "m1")
	req.Modules[0].EndDate = "2025-12-31"
	_, err = svc.Create("user-a1", req)
	assert.ErrorIs(t, err, util.ErrPlanModuleDates)

	req = planRequest("user-t1", "m1")
	req.TrainerID = "user-t2"
	_, err = svc.Create("user-a1", req)
	assert.ErrorIs(t, err, util.ErrTrainerNotFound)
}

func TestTrainingPlanService_Create(t *testing.T) {
	svc, _ := newPlanFixture(t)

	req := planRequest("user-t1", "m1", "m2")
	req.TrainerID = "user-a1"
	plan, err := svc.Create("user-a1", req)
	require.NoError(t, err)
	assert.Contains(t, plan.PlanID, util.PlanIDPrefix)
	assert.Equal(t, model.PlanDraft, plan.Status)
	assert.Equal(t, "t1@techacademy.com", plan.TraineeEmail)
	assert.Equal(t, "a1@techacademy.com", plan.TrainerEmail)
	require.Len(t, plan.Modules, 2)
	assert.Equal(t, model.ModulePending, plan.Modules[1].Status)

	plans, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestTrainingPlanService_SyncModuleCompletion(t *testing.T) {
	svc, _ := newPlanFixture(t)
	ctx := context.Background()

	_, err := svc.Create("user-a1", planRequest("user-t1", "m1", "m2", "m3"))
	require.NoError(t, err)
	_, err = svc.Create("user-a1", planRequest("user-t1", "m2"))
	require.NoError(t, err)
	_, err = svc.Create("user-a1", planRequest("user-t2", "m2"))
	require.NoError(t, err)

	n, err := svc.SyncModuleCompletion(ctx, "user-t1", "m9")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.SyncModuleCompletion(ctx, "user-t1", "m2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 重放不产生写入
	n, err = svc.SyncModuleCompletion(ctx, "user-t1", "m2")
	require.NoError(t, err)
	assert.Zero(t, n)

	plans, err := svc.PlanRepo.FindByTrainee("user-t1")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	for _, p := range plans {
		if len(p.Modules) == 1 {
			assert.Equal(t, model.PlanCompleted, p.Status)
			continue
		}
		assert.Equal(t, model.PlanInProgress, p.Status)
		assert.Equal(t, model.ModuleInProgress, p.Modules[0].Status)
		assert.Equal(t, model.ModuleCompleted, p.Modules[1].Status)
		assert.Equal(t, model.ModulePending, p.Modules[2].Status)
	}

	other, err := svc.PlanRepo.FindByTrainee("user-t2")
	require.NoError(t, err)
	assert.Equal(t, model.PlanDraft, other[0].Status)
}

func TestTrainingPlanService_SyncRetriesOnStaleVersion(t *testing.T) {
	svc, db := newPlanFixture(t)

	plan, err := svc.Create("user-a1", planRequest("user-t1", "m1", "m2"))
	require.NoError(t, err)
	// 另一个写入者先更新了计划
	require.NoError(t, db.Model(&model.TrainingPlan{}).Where("id = ?", plan.ID).Update("version", 7).Error)

	changed, err := svc.applyCompletion(context.Background(), plan, "m1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 8, plan.Version)

	fresh, err := svc.PlanRepo.FindByID(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleCompleted, fresh.Modules[0].Status)
}

func TestTrainingPlanService_Progress(t *testing.T) {
	svc, _ := newPlanFixture(t)
	ctx := context.Background()

	_, err := svc.Create("user-a1", planRequest("user-t1", "m1", "m2"))
	require.NoError(t, err)
	_, err = svc.Create("user-a1", planRequest("user-t2", "m1", "m2", "m3", "m4"))
	require.NoError(t, err)
	_, err = svc.SyncModuleCompletion(ctx, "user-t1", "m1")
	require.NoError(t, err)

	report, err := svc.Progress("user-t1", model.Trainee)
	require.NoError(t, err)
	assert.Equal(t, "trainee", report.UserRole)
	assert.Nil(t, report.Summary)
	items := report.Progress.([]PlanProgress)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Total)
	assert.Equal(t, 1, items[0].Completed)
	assert.Equal(t, 1, items[0].InProgress)
	assert.Equal(t, 50, items[0].ProgressPercentage)
	require.NotNil(t, items[0].EndDate)
	assert.Equal(t, "2026-01-01", items[0].StartDate.Format(util.DateFormat))

	report, err = svc.Progress("user-a1", model.Admin)
	require.NoError(t, err)
	assert.Equal(t, "admin", report.UserRole)
	require.NotNil(t, report.Summary)
	assert.Equal(t, 2, report.Summary.TotalTrainees)
	assert.Equal(t, 2, report.Summary.TotalPlans)
	// (50 + 0) / 2
	assert.Equal(t, 25, report.Summary.AverageProgress)

	summaries := report.Progress.([]TraineePlanSummary)
	assert.Len(t, summaries[0].Plans, 1)
}
