package models

import "time"

type Coach struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	BranchID  int64     `yaml:"branch_id" json:"branch_id"`
	Specialty string    `yaml:"specialty" json:"specialty"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	SortOrder int64     `yaml:"sort_order" json:"sort_order"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}
