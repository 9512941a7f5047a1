package models

import (
	"time"

	"github.com/erp/reconciler/internal/domain/project"
	"github.com/google/uuid"
)

// InternalProjectModel is the persistence model for an internal accounting project
type InternalProjectModel struct {
	BaseModel
	Name        string `gorm:"size:200;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	IsTBD       bool   `gorm:"column:is_tbd;not null"`
}

// TableName returns the table name for GORM
func (InternalProjectModel) TableName() string {
	return "internal_projects"
}

// ToDomain converts the persistence model to a domain InternalProject
func (m *InternalProjectModel) ToDomain() *project.InternalProject {
	return &project.InternalProject{
		BaseEntity:  m.BaseModel.ToDomain(),
		Name:        m.Name,
		Description: m.Description,
		IsTBD:       m.IsTBD,
	}
}

// FromDomain populates the persistence model from a domain InternalProject
func (m *InternalProjectModel) FromDomain(p *project.InternalProject) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Name = p.Name
	m.Description = p.Description
	m.IsTBD = p.IsTBD
}

// CustomerProjectModel is the persistence model for a customer-side project
type CustomerProjectModel struct {
	BaseModel
	Code string `gorm:"size:100;not null;uniqueIndex"`
	Name string `gorm:"size:200;not null"`
}

// TableName returns the table name for GORM
func (CustomerProjectModel) TableName() string {
	return "customer_projects"
}

// ToDomain converts the persistence model to a domain CustomerProject
func (m *CustomerProjectModel) ToDomain() *project.CustomerProject {
	return &project.CustomerProject{
		BaseEntity: m.BaseModel.ToDomain(),
		Code:       m.Code,
		Name:       m.Name,
	}
}

// FromDomain populates the persistence model from a domain CustomerProject
func (m *CustomerProjectModel) FromDomain(p *project.CustomerProject) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Code = p.Code
	m.Name = p.Name
}

// ResolutionRuleModel is the persistence model for a project resolution rule.
// Empty string criteria are stored as empty strings, not NULL.
type ResolutionRuleModel struct {
	BaseModel
	Name              string     `gorm:"size:200;not null"`
	TargetProjectID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	SitePrefix        string     `gorm:"size:100;not null"`
	SiteSuffix        string     `gorm:"size:100;not null"`
	SiteContains      string     `gorm:"size:100;not null"`
	CustomerProjectID *uuid.UUID `gorm:"type:uuid"`
	PublishDateMin    *time.Time
	PublishDateMax    *time.Time
}

// TableName returns the table name for GORM
func (ResolutionRuleModel) TableName() string {
	return "project_resolution_rules"
}

// ToDomain converts the persistence model to a domain Rule
func (m *ResolutionRuleModel) ToDomain() *project.Rule {
	return &project.Rule{
		BaseEntity:      m.BaseModel.ToDomain(),
		Name:            m.Name,
		TargetProjectID: m.TargetProjectID,
		RuleCriteria: project.RuleCriteria{
			SitePrefix:        m.SitePrefix,
			SiteSuffix:        m.SiteSuffix,
			SiteContains:      m.SiteContains,
			CustomerProjectID: m.CustomerProjectID,
			PublishDateMin:    utc(m.PublishDateMin),
			PublishDateMax:    utc(m.PublishDateMax),
		},
	}
}

// FromDomain populates the persistence model from a domain Rule
func (m *ResolutionRuleModel) FromDomain(r *project.Rule) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.Name = r.Name
	m.TargetProjectID = r.TargetProjectID
	m.SitePrefix = r.SitePrefix
	m.SiteSuffix = r.SiteSuffix
	m.SiteContains = r.SiteContains
	m.CustomerProjectID = r.CustomerProjectID
	m.PublishDateMin = utc(r.PublishDateMin)
	m.PublishDateMax = utc(r.PublishDateMax)
}

// SiteAllocationModel is the persistence model for a manual site allocation
type SiteAllocationModel struct {
	BaseModel
	SiteCode  string    `gorm:"size:100;not null;uniqueIndex"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (SiteAllocationModel) TableName() string {
	return "manual_site_allocations"
}

// ToDomain converts the persistence model to a domain SiteAllocation
func (m *SiteAllocationModel) ToDomain() *project.SiteAllocation {
	return &project.SiteAllocation{
		BaseEntity: m.BaseModel.ToDomain(),
		SiteCode:   m.SiteCode,
		ProjectID:  m.ProjectID,
	}
}

// FromDomain populates the persistence model from a domain SiteAllocation
func (m *SiteAllocationModel) FromDomain(a *project.SiteAllocation) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.SiteCode = a.SiteCode
	m.ProjectID = a.ProjectID
}

// ResolutionVersionID is the primary key of the single resolution version row
const ResolutionVersionID = 1

// ResolutionVersionModel is the single-row counter bumped on every rule or
// allocation write
type ResolutionVersionModel struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false"`
	Version   int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ResolutionVersionModel) TableName() string {
	return "resolution_versions"
}
