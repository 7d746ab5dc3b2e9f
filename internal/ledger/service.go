package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	AccountsByID(ctx context.Context, ids []int64) (map[int64]Account, error)
	Accounts(ctx context.Context, companyID int64) ([]Account, error)
}

// PostingObserver is notified after a posting commits.
type PostingObserver interface {
	EntryPosted(ctx context.Context, entry JournalEntry)
}

// PostingMetrics records the outcome of every posting attempt.
type PostingMetrics interface {
	ObservePosting(documentType string, err error)
}

// Service exposes journal drafting, posting and chart of accounts maintenance.
type Service struct {
	repo      RepositoryPort
	poster    *Poster
	audit     shared.AuditRecorder
	metrics   PostingMetrics
	observers []PostingObserver
}

// NewService constructs the ledger service. audit may be nil.
func NewService(repo RepositoryPort, poster *Poster, audit shared.AuditRecorder) *Service {
	if poster == nil {
		poster = NewPoster(nil)
	}
	return &Service{repo: repo, poster: poster, audit: audit}
}

// WithMetrics attaches posting metrics.
func (s *Service) WithMetrics(metrics PostingMetrics) *Service {
	s.metrics = metrics
	return s
}

// Observe registers observers called after each committed posting.
func (s *Service) Observe(observers ...PostingObserver) *Service {
	s.observers = append(s.observers, observers...)
	return s
}

// PostJournalEntry posts entry under documentType in one transaction. Pass an
// entry with only ID set to post a stored draft.
func (s *Service) PostJournalEntry(ctx context.Context, entry JournalEntry, documentType string) (JournalEntry, error) {
	var posted JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out, err := s.poster.Post(ctx, tx, entry, documentType)
		if err != nil {
			return err
		}
		posted = out
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObservePosting(documentType, err)
	}
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.post", posted.ID, map[string]any{
		"number":        posted.DocumentNumber,
		"source_module": posted.SourceModule,
	})
	s.notify(ctx, posted)
	return posted, nil
}

// CreateDraftEntry stores an unposted entry. Drafts may be unbalanced; the
// checker runs at posting time.
func (s *Service) CreateDraftEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	if entry.Posted || entry.DocumentNumber != "" {
		return JournalEntry{}, fmt.Errorf("%w: drafts carry no number", shared.ErrValidation)
	}
	if entry.Date.IsZero() {
		return JournalEntry{}, fmt.Errorf("%w: date required", shared.ErrValidation)
	}
	if err := checkScale(entry.Lines); err != nil {
		return JournalEntry{}, err
	}
	entry.ID = 0
	var created JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.FiscalYear(ctx, entry.FiscalYearID)
		if err != nil {
			return err
		}
		if fy.CompanyID != entry.CompanyID {
			return fmt.Errorf("%w: fiscal year %d belongs to company %d", shared.ErrCrossCompanyMismatch, fy.ID, fy.CompanyID)
		}
		out, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.draft", created.ID, nil)
	return created, nil
}

// ReplaceLines swaps every line of a draft.
func (s *Service) ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	return s.mutateDraft(ctx, entryID, "journal.lines", func(ctx context.Context, tx TxRepository) error {
		if err := checkScale(lines); err != nil {
			return err
		}
		return tx.ReplaceLines(ctx, entryID, lines)
	})
}

// UpdateDescription changes a draft's description.
func (s *Service) UpdateDescription(ctx context.Context, entryID int64, description string) error {
	return s.mutateDraft(ctx, entryID, "journal.describe", func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateDescription(ctx, entryID, strings.TrimSpace(description))
	})
}

// DeleteEntry removes a draft.
func (s *Service) DeleteEntry(ctx context.Context, entryID int64) error {
	return s.mutateDraft(ctx, entryID, "journal.delete", func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteEntry(ctx, entryID)
	})
}

// mutateDraft locks the entry and refuses any change once it is posted.
func (s *Service) mutateDraft(ctx context.Context, entryID int64, action string, fn func(context.Context, TxRepository) error) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Posted {
			return fmt.Errorf("%w: %s", shared.ErrEntryLocked, current.DocumentNumber)
		}
		return fn(ctx, tx)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, action, entryID, nil)
	return nil
}

// Entry loads an entry with its lines.
func (s *Service) Entry(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// Validate runs the checker against current account data without writing.
func (s *Service) Validate(ctx context.Context, companyID int64, lines []JournalLine) error {
	accounts, err := s.repo.AccountsByID(ctx, AccountIDs(lines))
	if err != nil {
		return err
	}
	return Validate(companyID, lines, accounts)
}

// CreateAccountInput describes a chart of accounts node.
type CreateAccountInput struct {
	CompanyID int64
	TypeCode  string
	Code      string
	Name      string
	ParentID  *int64
	Postable  bool
	Control   bool
}

// CreateAccount adds an account. A parent must belong to the same company.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	account := Account{
		CompanyID: input.CompanyID,
		TypeCode:  strings.ToUpper(strings.TrimSpace(input.TypeCode)),
		Code:      strings.TrimSpace(input.Code),
		Name:      strings.TrimSpace(input.Name),
		ParentID:  input.ParentID,
		Active:    true,
		Postable:  input.Postable,
		Control:   input.Control,
	}
	if account.Code == "" || account.Name == "" || account.TypeCode == "" {
		return Account{}, fmt.Errorf("%w: account type, code and name required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if account.ParentID != nil {
			parent, err := tx.AccountForUpdate(ctx, *account.ParentID)
			if err != nil {
				return err
			}
			if parent.CompanyID != account.CompanyID {
				return fmt.Errorf("%w: parent account belongs to company %d", shared.ErrCrossCompanyMismatch, parent.CompanyID)
			}
		}
		id, err := tx.InsertAccount(ctx, account)
		account.ID = id
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// ReparentAccount moves an account under newParent, or to the root when nil.
// Each visited ancestor is locked so concurrent opposite moves cannot both
// succeed; one of them waits and then sees the other's parent.
func (s *Service) ReparentAccount(ctx context.Context, id int64, newParent *int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		node, err := tx.AccountForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if newParent != nil {
			parent, err := tx.AccountForUpdate(ctx, *newParent)
			if err != nil {
				return err
			}
			if parent.CompanyID != node.CompanyID {
				return fmt.Errorf("%w: parent account belongs to company %d", shared.ErrCrossCompanyMismatch, parent.CompanyID)
			}
		}
		parentOf := func(ctx context.Context, id int64) (*int64, error) {
			acc, err := tx.AccountForUpdate(ctx, id)
			if err != nil {
				return nil, err
			}
			return acc.ParentID, nil
		}
		if err := shared.EnsureAcyclic(ctx, id, newParent, parentOf); err != nil {
			return err
		}
		return tx.SetAccountParent(ctx, id, newParent)
	})
	if err != nil {
		return err
	}
	s.recordAuditEntity(ctx, "account.reparent", "account", id, map[string]any{"parent_id": newParent})
	return nil
}

// Accounts lists a company's chart of accounts.
func (s *Service) Accounts(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.Accounts(ctx, companyID)
}

func (s *Service) notify(ctx context.Context, entry JournalEntry) {
	for _, o := range s.observers {
		o.EntryPosted(ctx, entry)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entryID int64, meta map[string]any) {
	s.recordAuditEntity(ctx, action, "journal_entry", entryID, meta)
}

func (s *Service) recordAuditEntity(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       time.Now().UTC(),
	})
}

