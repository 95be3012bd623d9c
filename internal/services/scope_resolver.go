package services

import (
	"context"
	"sort"

	apperrors "famledger/internal/errors"
	"famledger/internal/models"
	"famledger/internal/scope"
)

// View selects which family scopes a user sees.
type View string

const (
	// ViewMine adds the caller's own MEMBER scopes to the family scopes.
	ViewMine View = "mine"
	// ViewFamily shows only the pooled GENERAL scopes of each family.
	ViewFamily View = "family"
)

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	return v == ViewMine || v == ViewFamily
}

// ResolvedScope is a scope plus the metadata needed to present it.
type ResolvedScope struct {
	Scope           scope.Scope
	OwnerName       string
	AccountBookName string
	FamilyID        string
	Custodial       bool
}

// DisplayName returns the label of a budget in this scope: pooled family
// budgets show the budget's own name, everything else the owner's name.
func (r ResolvedScope) DisplayName(budgetName string) string {
	if r.Scope.Kind == scope.KindGeneral || r.OwnerName == "" {
		return budgetName
	}
	return r.OwnerName
}

// ScopeResolver works out which budget scopes apply to a user.
type ScopeResolver struct {
	dir  Directory
	keys ScopeKeyLister
}

// NewScopeResolver creates a new ScopeResolver. keys supplies the scopes
// that already have budgets; it may be nil, in which case only the fixed
// per-book scopes are resolved.
func NewScopeResolver(dir Directory, keys ScopeKeyLister) *ScopeResolver {
	return &ScopeResolver{dir: dir, keys: keys}
}

// ActiveScopesFor returns the scopes visible to the user: a PERSONAL scope
// per personal book, a GENERAL scope per family book of every family the
// user belongs to and, for ViewMine, the user's own MEMBER scope in those
// books. The user's PERSONAL budgets in family books and category-narrowed
// budgets of any visible scope are listed once they exist. Custodial
// members are never included.
func (r *ScopeResolver) ActiveScopesFor(ctx context.Context, userID string, view View) ([]ResolvedScope, error) {
	if !view.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "view must be one of: mine family")
	}

	user, err := r.dir.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	books, err := r.dir.ListPersonalBooks(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out, budgetedOnly []ResolvedScope
	for _, book := range books {
		out = append(out, ResolvedScope{
			Scope:           scope.Personal(userID, book.ID),
			OwnerName:       user.Name,
			AccountBookName: book.Name,
		})
	}

	memberships, err := r.dir.ListFamilyMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		familyBooks, err := r.dir.ListFamilyBooks(ctx, m.FamilyID)
		if err != nil {
			return nil, err
		}
		familyName := ""
		if m.Family != nil {
			familyName = m.Family.Name
		}
		for _, book := range familyBooks {
			out = append(out, ResolvedScope{
				Scope:           scope.General(m.FamilyID, book.ID),
				OwnerName:       familyName,
				AccountBookName: book.Name,
				FamilyID:        m.FamilyID,
			})
			budgetedOnly = append(budgetedOnly, ResolvedScope{
				Scope:           scope.Personal(userID, book.ID),
				OwnerName:       user.Name,
				AccountBookName: book.Name,
				FamilyID:        m.FamilyID,
			})
			if view == ViewMine {
				out = append(out, ResolvedScope{
					Scope:           scope.Member(m.ID, book.ID),
					OwnerName:       memberName(&m, user),
					AccountBookName: book.Name,
					FamilyID:        m.FamilyID,
				})
			}
		}
	}

	out, err = r.withBudgeted(ctx, out, budgetedOnly)
	if err != nil {
		return nil, err
	}
	sortScopes(out)
	return out, nil
}

// CustodialScopesFor returns the MEMBER scopes of the family's custodial
// members. Only a guardian (an admin member with a login) may resolve them.
func (r *ScopeResolver) CustodialScopesFor(ctx context.Context, guardianID, familyID string) ([]ResolvedScope, error) {
	if _, err := r.requireGuardian(ctx, guardianID, familyID); err != nil {
		return nil, err
	}

	members, err := r.dir.ListCustodialMembers(ctx, familyID)
	if err != nil {
		return nil, err
	}
	books, err := r.dir.ListFamilyBooks(ctx, familyID)
	if err != nil {
		return nil, err
	}

	var out []ResolvedScope
	for _, m := range members {
		for _, book := range books {
			out = append(out, ResolvedScope{
				Scope:           scope.Member(m.ID, book.ID),
				OwnerName:       m.Name,
				AccountBookName: book.Name,
				FamilyID:        familyID,
				Custodial:       true,
			})
		}
	}

	out, err = r.withBudgeted(ctx, out, nil)
	if err != nil {
		return nil, err
	}
	sortScopes(out)
	return out, nil
}

// Resolve checks that the user may act on s and returns its metadata.
// PERSONAL scopes belong to their owner only. GENERAL and MEMBER scopes are
// open to every member of the book's family, except custodial MEMBER scopes
// which need a guardian.
func (r *ScopeResolver) Resolve(ctx context.Context, userID string, s scope.Scope) (*ResolvedScope, error) {
	if err := s.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	book, err := r.dir.GetAccountBook(ctx, s.AccountBookID)
	if err != nil {
		return nil, err
	}
	if s.CategoryID != "" {
		category, err := r.dir.GetCategory(ctx, s.CategoryID)
		if err != nil {
			return nil, err
		}
		if category.AccountBookID != book.ID {
			return nil, apperrors.ErrInvalidCategory
		}
	}

	resolved := &ResolvedScope{Scope: s, AccountBookName: book.Name}

	switch s.Kind {
	case scope.KindPersonal:
		if s.OwnerID != userID {
			return nil, apperrors.ErrForbidden
		}
		if book.Type == models.AccountBookTypePersonal && book.OwnerUserID != userID {
			return nil, apperrors.ErrForbidden
		}
		if book.FamilyID != nil {
			if _, err := r.membership(ctx, userID, *book.FamilyID); err != nil {
				return nil, err
			}
		}
		user, err := r.dir.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		resolved.OwnerName = user.Name

	case scope.KindGeneral:
		if book.FamilyID == nil || *book.FamilyID != s.OwnerID {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account book does not belong to this family")
		}
		if _, err := r.membership(ctx, userID, s.OwnerID); err != nil {
			return nil, err
		}
		family, err := r.dir.GetFamily(ctx, s.OwnerID)
		if err != nil {
			return nil, err
		}
		resolved.OwnerName = family.Name
		resolved.FamilyID = family.ID

	case scope.KindMember:
		member, err := r.dir.GetFamilyMember(ctx, s.OwnerID)
		if err != nil {
			return nil, err
		}
		if book.FamilyID == nil || *book.FamilyID != member.FamilyID {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account book does not belong to the member's family")
		}
		if member.IsCustodial {
			if _, err := r.requireGuardian(ctx, userID, member.FamilyID); err != nil {
				return nil, err
			}
		} else if _, err := r.membership(ctx, userID, member.FamilyID); err != nil {
			return nil, err
		}
		resolved.OwnerName = member.Name
		resolved.FamilyID = member.FamilyID
		resolved.Custodial = member.IsCustodial
	}

	return resolved, nil
}

// withBudgeted adds the scopes that exist only through their budgets: the
// category-narrowed variants of every listed or budgetedOnly scope, and the
// budgetedOnly scopes themselves.
func (r *ScopeResolver) withBudgeted(ctx context.Context, listed, budgetedOnly []ResolvedScope) ([]ResolvedScope, error) {
	if r.keys == nil {
		return listed, nil
	}

	bases := make(map[string]ResolvedScope, len(listed)+len(budgetedOnly))
	seen := make(map[string]bool, len(listed))
	var bookIDs []string
	books := make(map[string]bool)
	for _, group := range [][]ResolvedScope{listed, budgetedOnly} {
		for _, rs := range group {
			if _, ok := bases[rs.Scope.Key()]; !ok {
				bases[rs.Scope.Key()] = rs
			}
			if !books[rs.Scope.AccountBookID] {
				books[rs.Scope.AccountBookID] = true
				bookIDs = append(bookIDs, rs.Scope.AccountBookID)
			}
		}
	}
	for _, rs := range listed {
		seen[rs.Scope.Key()] = true
	}

	keys, err := r.keys.ScopeKeysInBooks(ctx, bookIDs)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if seen[key] {
			continue
		}
		s, err := scope.Parse(key)
		if err != nil {
			continue
		}
		rs, ok := bases[s.Base().Key()]
		if !ok {
			continue
		}
		rs.Scope = s
		listed = append(listed, rs)
		seen[key] = true
	}
	return listed, nil
}

func (r *ScopeResolver) membership(ctx context.Context, userID, familyID string) (*models.FamilyMember, error) {
	memberships, err := r.dir.ListFamilyMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range memberships {
		if memberships[i].FamilyID == familyID {
			return &memberships[i], nil
		}
	}
	return nil, apperrors.ErrForbidden
}

func (r *ScopeResolver) requireGuardian(ctx context.Context, userID, familyID string) (*models.FamilyMember, error) {
	m, err := r.membership(ctx, userID, familyID)
	if err != nil {
		return nil, err
	}
	if !m.IsGuardian() {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "only a family admin can manage custodial members")
	}
	return m, nil
}

func memberName(m *models.FamilyMember, user *models.User) string {
	if m.Name != "" {
		return m.Name
	}
	return user.Name
}

// sortScopes orders scopes PERSONAL, GENERAL, MEMBER, then by account book
// name, owner, book id and category. A scope without a category comes
// before its narrowed variants.
func sortScopes(scopes []ResolvedScope) {
	sort.SliceStable(scopes, func(i, j int) bool {
		a, b := scopes[i], scopes[j]
		if ra, rb := a.Scope.Kind.Rank(), b.Scope.Kind.Rank(); ra != rb {
			return ra < rb
		}
		if a.AccountBookName != b.AccountBookName {
			return a.AccountBookName < b.AccountBookName
		}
		if a.Scope.OwnerID != b.Scope.OwnerID {
			return a.Scope.OwnerID < b.Scope.OwnerID
		}
		if a.Scope.AccountBookID != b.Scope.AccountBookID {
			return a.Scope.AccountBookID < b.Scope.AccountBookID
		}
		return a.Scope.CategoryID < b.Scope.CategoryID
	})
}
