package model

import "time"

type PlanStatus string

const (
	PlanDraft      PlanStatus = "draft"
	PlanScheduled  PlanStatus = "scheduled"
	PlanInProgress PlanStatus = "in-progress"
	PlanCompleted  PlanStatus = "completed"
)

type ModuleStatus string

const (
	ModulePending    ModuleStatus = "pending"
	ModuleInProgress ModuleStatus = "in-progress"
	ModuleCompleted  ModuleStatus = "completed"
)

// swagger:model TrainingPlan
type TrainingPlan struct {
	BaseModel
	PlanID       string               `gorm:"size:64;uniqueIndex;not null" json:"planId"`
	PlanName     string               `gorm:"size:255;not null" json:"planName"`
	Description  string               `gorm:"type:text" json:"description,omitempty"`
	TraineeID    string               `gorm:"size:64;index;not null" json:"traineeId"`
	TraineeEmail string               `gorm:"size:191;not null" json:"traineeEmail"`
	TrainerID    string               `gorm:"size:64" json:"trainerId,omitempty"`
	TrainerEmail string               `gorm:"size:191" json:"trainerEmail,omitempty"`
	Status       PlanStatus           `gorm:"size:20;default:'draft'" json:"status"`
	CreatedBy    string               `gorm:"size:64;not null" json:"createdBy"`
	Version      int                  `gorm:"not null;default:1" json:"-"`
	Modules      []TrainingPlanModule `gorm:"foreignKey:PlanRefID;constraint:OnDelete:CASCADE" json:"modules"`
}

func (TrainingPlan) TableName() string {
	return "training_plans"
}

// swagger:model TrainingPlanModule
type TrainingPlanModule struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"-"`
	PlanRefID   uint         `gorm:"index;not null" json:"-"`
	Position    int          `gorm:"not null" json:"position"`
	ModuleUID   string       `gorm:"size:64;index" json:"moduleUid"`
	ModuleName  string       `gorm:"size:255;not null" json:"moduleName"`
	TrainerName string       `gorm:"size:255" json:"trainerName,omitempty"`
	StartDate   time.Time    `json:"startDate"`
	EndDate     time.Time    `json:"endDate"`
	Status      ModuleStatus `gorm:"size:20;default:'pending'" json:"status"`
}

func (TrainingPlanModule) TableName() string {
	return "training_plan_modules"
}

// HasModule 按 moduleUid 判断计划是否包含该模块
func (p *TrainingPlan) HasModule(moduleUID string) bool {
	for _, m := range p.Modules {
		if m.ModuleUID == moduleUID {
			return true
		}
	}
	return false
}

// ApplyModuleCompletion marks every entry for moduleUID completed and rolls the
// module statuses up into the plan status. It reports whether anything changed,
// so replaying the same completion is a no-op.
func (p *TrainingPlan) ApplyModuleCompletion(moduleUID string) bool {
	if moduleUID == "" || !p.HasModule(moduleUID) {
		return false
	}

	changed := false
	for i := range p.Modules {
		if p.Modules[i].ModuleUID == moduleUID && p.Modules[i].Status != ModuleCompleted {
			p.Modules[i].Status = ModuleCompleted
			changed = true
		}
	}

	if p.rollup() {
		changed = true
	}
	return changed
}

func (p *TrainingPlan) rollup() bool {
	changed := false

	if p.AllModulesCompleted() {
		if p.Status != PlanCompleted {
			p.Status = PlanCompleted
			changed = true
		}
		return changed
	}

	if !p.hasModuleInStatus(ModuleInProgress) {
		for i := range p.Modules {
			if p.Modules[i].Status == ModulePending {
				p.Modules[i].Status = ModuleInProgress
				changed = true
				break
			}
		}
	}

	if p.Status == PlanDraft || p.Status == PlanScheduled || p.Status == "" {
		p.Status = PlanInProgress
		changed = true
	}
	return changed
}

func (p *TrainingPlan) AllModulesCompleted() bool {
	if len(p.Modules) == 0 {
		return false
	}
	for _, m := range p.Modules {
		if m.Status != ModuleCompleted {
			return false
		}
	}
	return true
}

func (p *TrainingPlan) hasModuleInStatus(status ModuleStatus) bool {
	for _, m := range p.Modules {
		if m.Status == status {
			return true
		}
	}
	return false
}

// PlanModuleCounts 计划内各状态模块数量
type PlanModuleCounts struct {
	Total      int `json:"totalModules"`
	Completed  int `json:"completedModules"`
	InProgress int `json:"inProgressModules"`
	Pending    int `json:"pendingModules"`
}

func (c PlanModuleCounts) Percentage() int {
	return Percentage(c.Completed, c.Total)
}

func (c *PlanModuleCounts) Add(other PlanModuleCounts) {
	c.Total += other.Total
	c.Completed += other.Completed
	c.InProgress += other.InProgress
	c.Pending += other.Pending
}

func (p *TrainingPlan) Counts() PlanModuleCounts {
	counts := PlanModuleCounts{Total: len(p.Modules)}
	for _, m := range p.Modules {
		switch m.Status {
		case ModuleCompleted:
			counts.Completed++
		case ModuleInProgress:
			counts.InProgress++
		case ModulePending:
			counts.Pending++
		}
	}
	return counts
}
