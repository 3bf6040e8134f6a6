// Package policy holds the declarative role→team routing table for the
// support desk. It is the single place role strings are interpreted; callers
// never compare roles ad hoc.
package policy

import (
	"errors"

	"github.com/harborview/support-service/internal/domain"
)

// ErrUnknownRole is returned for roles outside the known portal role set.
// Callers must degrade to "no permissions", never crash.
var ErrUnknownRole = errors.New("unknown role")

// Access pairs the teams a role may create tickets for with the teams whose
// queues it may view. The two sets are intentionally asymmetric for
// coordinators: they may create for both queues but view only the
// administrator queue.
type Access struct {
	Creatable []domain.Team
	Viewable  []domain.Team
}

// Table is the process-lifetime policy, loaded once at start.
type Table struct {
	rules    map[domain.Role]Access
	fallback Access
	known    map[domain.Role]struct{}
}

// New builds the routing table. extraRoles extends the set of recognized
// roles that fall under the default access row.
func New(extraRoles ...domain.Role) *Table {
	table := &Table{
		rules: map[domain.Role]Access{
			domain.RoleCoordinator: {
				Creatable: []domain.Team{domain.TeamAdministrator, domain.TeamCoordinator},
				Viewable:  []domain.Team{domain.TeamAdministrator},
			},
			domain.RoleAdministrator: {
				Creatable: []domain.Team{domain.TeamCoordinator},
				Viewable:  []domain.Team{domain.TeamCoordinator},
			},
		},
		fallback: Access{
			Creatable: []domain.Team{domain.TeamAdministrator, domain.TeamCoordinator},
			Viewable:  []domain.Team{domain.TeamAdministrator, domain.TeamCoordinator},
		},
		known: map[domain.Role]struct{}{
			domain.RolePatient:  {},
			domain.RoleProvider: {},
		},
	}
	for _, role := range extraRoles {
		table.known[domain.NormalizeRole(string(role))] = struct{}{}
	}
	return table
}

// CreatableTeams returns the teams the role may create tickets for.
func (t *Table) CreatableTeams(role domain.Role) ([]domain.Team, error) {
	access, err := t.lookup(role)
	if err != nil {
		return nil, err
	}
	return access.Creatable, nil
}

// ViewableTeams returns the teams whose queues the role may view.
func (t *Table) ViewableTeams(role domain.Role) ([]domain.Team, error) {
	access, err := t.lookup(role)
	if err != nil {
		return nil, err
	}
	return access.Viewable, nil
}

// MayCreateFor reports whether the role may target the team at creation.
func (t *Table) MayCreateFor(role domain.Role, team domain.Team) bool {
	teams, err := t.CreatableTeams(role)
	if err != nil {
		return false
	}
	return containsTeam(teams, team)
}

// MayView reports whether the role may view the team's queue. Status
// mutations are authorized against the same set.
func (t *Table) MayView(role domain.Role, team domain.Team) bool {
	teams, err := t.ViewableTeams(role)
	if err != nil {
		return false
	}
	return containsTeam(teams, team)
}

func (t *Table) lookup(role domain.Role) (Access, error) {
	canonical := domain.NormalizeRole(string(role))
	if access, ok := t.rules[canonical]; ok {
		return access, nil
	}
	if _, ok := t.known[canonical]; ok {
		return t.fallback, nil
	}
	return Access{}, ErrUnknownRole
}

func containsTeam(teams []domain.Team, team domain.Team) bool {
	for _, candidate := range teams {
		if candidate == team {
			return true
		}
	}
	return false
}
