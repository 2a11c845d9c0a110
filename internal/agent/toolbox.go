package agent

import (
	"time"

	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/domain"
)

// Services are the collaborators tools may consult. Any of them may be nil,
// in which case the tools that need it report it as unavailable.
type Services struct {
	Menu     catalog.Searcher
	Coverage catalog.CoverageChecker
	Items    catalog.ItemSource
	Promos   catalog.PromoSource

	RestaurantName string
	Hours          catalog.Hours
	PickupBranch   string
	Currency       string
	Now            func() time.Time
}

func (s Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Toolbox carries the tool bindings of one agent run. Tools validate each
// change against a scratch copy of the session and record it as a mutation
// request; the session the coordinator owns is never touched.
type Toolbox struct {
	svc       Services
	scratch   *domain.Session
	mutations []domain.Mutation
	confirm   bool
}

// NewToolbox starts a run against a private copy of s.
func NewToolbox(s *domain.Session, svc Services) *Toolbox {
	return &Toolbox{svc: svc, scratch: s.Clone()}
}

// Session is the scratch state with every accepted mutation applied.
func (t *Toolbox) Session() *domain.Session { return t.scratch }

// Services returns the collaborators bound to the run.
func (t *Toolbox) Services() Services { return t.svc }

// Propose validates m against the scratch session and records it.
func (t *Toolbox) Propose(m domain.Mutation) error {
	if err := m.Apply(t.scratch); err != nil {
		return err
	}
	t.mutations = append(t.mutations, m)
	return nil
}

// Mutations returns the accepted mutation requests in order.
func (t *Toolbox) Mutations() []domain.Mutation {
	return append([]domain.Mutation(nil), t.mutations...)
}

// RequestConfirm records that the checkout agent asked to confirm.
func (t *Toolbox) RequestConfirm() { t.confirm = true }

// ConfirmRequested reports whether confirm_order succeeded during the run.
func (t *Toolbox) ConfirmRequested() bool { return t.confirm }
