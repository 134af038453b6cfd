package models

const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// UserTenant maps an auth subject to the tenant it works for.
type UserTenant struct {
	BaseModel
	UserID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_tenant" json:"userId"`
	TenantID string `gorm:"type:char(36);not null;uniqueIndex:idx_user_tenant;index" json:"tenantId"`
	Role     string `gorm:"type:varchar(20);not null;default:'staff'" json:"role"`
	Tenant   Tenant `gorm:"foreignKey:TenantID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (UserTenant) TableName() string {
	return "user_tenants"
}
