// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types so the reconciliation domain stays
// free of ORM tags; mappers convert in both directions.
package models
