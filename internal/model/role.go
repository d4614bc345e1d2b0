package model

// swagger:model Role
type Role struct {
	BaseModel
	RoleID      string   `gorm:"size:50;uniqueIndex;not null" json:"roleId"`
	RoleName    UserRole `gorm:"size:20;uniqueIndex;not null" json:"roleName"`
	Description string   `gorm:"size:255;not null" json:"description"`
}

func (Role) TableName() string {
	return "roles"
}

// DefaultRoles 角色表为空时的内置角色
func DefaultRoles() []Role {
	return []Role{
		{RoleID: string(SuperAdmin), RoleName: SuperAdmin, Description: "Super Admin - Full system access"},
		{RoleID: string(Admin), RoleName: Admin, Description: "Admin - Can invite users and create training plans"},
		{RoleID: string(Trainee), RoleName: Trainee, Description: "Trainee - Can participate in training"},
	}
}
