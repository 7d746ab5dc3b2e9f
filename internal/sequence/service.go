package sequence

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
	Get(ctx context.Context, scope Scope) (State, error)
	List(ctx context.Context, companyID int64) ([]State, error)
	DocumentType(ctx context.Context, code string) (DocumentType, error)
	Ensure(ctx context.Context, st State) (State, error)
	SetActive(ctx context.Context, scope Scope, active bool) error
	FiscalYearCompany(ctx context.Context, fiscalYearID int64) (int64, error)
}

// AllocationObserver is told about every standalone allocation attempt.
type AllocationObserver interface {
	ObserveAllocation(documentType string, err error)
}

// Service exposes sequence allocation and administration.
type Service struct {
	repo     RepositoryPort
	observer AllocationObserver
}

// NewService constructs the sequence service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// WithObserver attaches an allocation observer.
func (s *Service) WithObserver(observer AllocationObserver) *Service {
	s.observer = observer
	return s
}

// AllocateDocumentNumber issues the next number for the scope in its own
// transaction.
func (s *Service) AllocateDocumentNumber(ctx context.Context, companyID, fiscalYearID int64, documentType string) (string, error) {
	scope := NewScope(companyID, fiscalYearID, documentType)
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		n, err := Allocate(ctx, store, scope)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	if s.observer != nil {
		s.observer.ObserveAllocation(scope.DocumentType, err)
	}
	if err != nil {
		return "", err
	}
	return number, nil
}

// EnsureInput describes a sequence row to create.
type EnsureInput struct {
	CompanyID    int64
	FiscalYearID int64
	DocumentType string
	Prefix       string
	Padding      int
	// Floor is the initial last number; the first allocation returns Floor+1.
	Floor int64
}

// EnsureSequence creates the scope row if it does not exist yet. The fiscal
// year must belong to the company.
func (s *Service) EnsureSequence(ctx context.Context, input EnsureInput) (State, error) {
	if input.CompanyID <= 0 || input.FiscalYearID <= 0 {
		return State{}, fmt.Errorf("%w: company and fiscal year required", shared.ErrValidation)
	}
	if input.Prefix == "" {
		return State{}, fmt.Errorf("%w: prefix required", shared.ErrValidation)
	}
	if input.Padding < 1 || input.Padding > 18 {
		return State{}, fmt.Errorf("%w: padding must be between 1 and 18", shared.ErrValidation)
	}
	if input.Floor < 0 {
		return State{}, fmt.Errorf("%w: floor must not be negative", shared.ErrValidation)
	}
	scope := NewScope(input.CompanyID, input.FiscalYearID, input.DocumentType)
	if _, err := s.repo.DocumentType(ctx, scope.DocumentType); err != nil {
		return State{}, err
	}
	owner, err := s.repo.FiscalYearCompany(ctx, input.FiscalYearID)
	if err != nil {
		return State{}, err
	}
	if owner != input.CompanyID {
		return State{}, fmt.Errorf("%w: fiscal year %d belongs to company %d", shared.ErrCrossCompanyMismatch, input.FiscalYearID, owner)
	}
	return s.repo.Ensure(ctx, State{
		Scope:      scope,
		Prefix:     input.Prefix,
		Padding:    input.Padding,
		LastNumber: input.Floor,
		Active:     true,
	})
}

// SetActive enables or disables allocation for a scope.
func (s *Service) SetActive(ctx context.Context, scope Scope, active bool) error {
	scope.DocumentType = NormalizeCode(scope.DocumentType)
	return s.repo.SetActive(ctx, scope, active)
}

// Peek returns the current state of a scope without locking it.
func (s *Service) Peek(ctx context.Context, scope Scope) (State, error) {
	scope.DocumentType = NormalizeCode(scope.DocumentType)
	return s.repo.Get(ctx, scope)
}

// List returns the sequences configured for a company.
func (s *Service) List(ctx context.Context, companyID int64) ([]State, error) {
	return s.repo.List(ctx, companyID)
}
