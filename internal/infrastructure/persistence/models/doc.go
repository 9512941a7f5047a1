// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel shared by uuid-keyed tables
// - raw.go: raw upload staging rows (purchase order lines, acceptance lines)
// - ledger.go: canonical merged purchase order ledger
// - project.go: internal projects, customer projects, rules, site allocations, resolution version
// - batch.go: upload batches
package models
