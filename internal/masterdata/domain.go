// Package masterdata manages the reference data document numbering and posting
// hang off: companies, fiscal years, projects and their cost center trees.
package masterdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Company represents a legal entity.
type Company struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// FiscalYear is a company's accounting year. At most one is active per company.
type FiscalYear struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Year      int       `json:"year"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active"`
}

// ProjectStatus enumerates project lifecycle stages.
type ProjectStatus uint8

const (
	ProjectPlanned ProjectStatus = iota
	ProjectActive
	ProjectOnHold
	ProjectCompleted
	ProjectCancelled
)

var projectStatusNames = [...]string{
	ProjectPlanned:   "planned",
	ProjectActive:    "active",
	ProjectOnHold:    "on_hold",
	ProjectCompleted: "completed",
	ProjectCancelled: "cancelled",
}

func (s ProjectStatus) String() string {
	if int(s) < len(projectStatusNames) {
		return projectStatusNames[s]
	}
	return fmt.Sprintf("ProjectStatus(%d)", s)
}

// MarshalText encodes the status by name.
func (s ProjectStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseProjectStatus resolves a stored or requested status name.
func ParseProjectStatus(v string) (ProjectStatus, error) {
	for i, name := range projectStatusNames {
		if name == strings.ToLower(strings.TrimSpace(v)) {
			return ProjectStatus(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown project status %q", shared.ErrValidation, v)
}

// Terminal reports whether no further status change is allowed.
func (s ProjectStatus) Terminal() bool {
	return s == ProjectCompleted || s == ProjectCancelled
}

// Project is a cost and profit container inside a company.
type Project struct {
	ID           int64         `json:"id"`
	CompanyID    int64         `json:"company_id"`
	FiscalYearID int64         `json:"fiscal_year_id"`
	Code         string        `json:"code"`
	Name         string        `json:"name"`
	Status       ProjectStatus `json:"status"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      *time.Time    `json:"end_date,omitempty"`
	Active       bool          `json:"active"`
}

// CostCenter is a node of a project's work breakdown tree.
type CostCenter struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Postable  bool   `json:"postable"`
	Active    bool   `json:"active"`
}
