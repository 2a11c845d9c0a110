// Package coordinator runs one conversation turn end to end: it serializes
// turns per session, hands the message to the agent of the current phase,
// applies the agent's order changes, routes, confirms and persists. A turn
// either commits as a whole or leaves the stored session as it was.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/sawt/internal/agent"
	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/config"
	"github.com/soyeahso/sawt/internal/domain"
	"github.com/soyeahso/sawt/internal/handoff"
	"github.com/soyeahso/sawt/internal/hooks"
	"github.com/soyeahso/sawt/internal/logging"
	"github.com/soyeahso/sawt/internal/metrics"
	"github.com/soyeahso/sawt/internal/routing"
	"github.com/soyeahso/sawt/internal/store"
)

// Deps are the collaborators of a Coordinator. Locker and Hooks are optional.
type Deps struct {
	Sessions store.SessionStore
	Locker   *store.Locker
	Agents   map[domain.Phase]agent.Agent
	Services agent.Services
	Orders   catalog.OrderSink
	Hooks    *hooks.Manager
}

// Coordinator handles conversation turns.
type Coordinator struct {
	cfg      config.CoordinatorConfig
	sessions store.SessionStore
	locker   *store.Locker
	agents   map[domain.Phase]agent.Agent
	services agent.Services
	orders   catalog.OrderSink
	hooks    *hooks.Manager
	log      *logging.Logger
}

// New creates a Coordinator. Lookup collaborators in deps.Services are
// wrapped so transient failures are retried with backoff.
func New(cfg config.CoordinatorConfig, deps Deps, log *logging.Logger) *Coordinator {
	if deps.Locker == nil {
		deps.Locker = store.NewLocker()
	}
	r := retrier{retries: cfg.LookupRetries, backoff: cfg.RetryBackoff}
	if r.backoff <= 0 {
		r.backoff = 100 * time.Millisecond
	}

	svc := deps.Services
	if svc.Menu != nil {
		svc.Menu = retryingSearcher{r: r, next: svc.Menu}
	}
	if svc.Coverage != nil {
		svc.Coverage = retryingCoverage{r: r, next: svc.Coverage}
	}
	if svc.Items != nil {
		svc.Items = retryingItems{r: r, next: svc.Items}
	}
	if svc.Promos != nil {
		svc.Promos = retryingPromos{r: r, next: svc.Promos}
	}
	if svc.Now == nil {
		svc.Now = time.Now
	}

	return &Coordinator{
		cfg:      cfg,
		sessions: deps.Sessions,
		locker:   deps.Locker,
		agents:   deps.Agents,
		services: svc,
		orders:   deps.Orders,
		hooks:    deps.Hooks,
		log:      log.Sub("coordinator"),
	}
}

// TurnResult is what the customer sees after a turn.
type TurnResult struct {
	SessionID   string             `json:"sessionId"`
	Reply       string             `json:"reply"`
	Phase       domain.Phase       `json:"phase"`
	Previous    domain.Phase       `json:"previousPhase"`
	Transitions []routing.Decision `json:"transitions,omitempty"`
	OrderID     string             `json:"orderId,omitempty"`
	Totals      *domain.Totals     `json:"totals,omitempty"`
	Error       string             `json:"error,omitempty"`
	Duration    time.Duration      `json:"duration"`
}

// NewSessionID returns a fresh conversation id.
func NewSessionID() string {
	return uuid.NewString()
}

// HandleTurn processes one customer message. On failure the result still
// carries a reply for the customer, alongside the error; the stored session
// is left unchanged except for refreshed prices after a price mismatch.
func (c *Coordinator) HandleTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	const op = "turn"
	start := time.Now()
	m := metrics.Get()
	m.ActiveTurns.Inc()
	defer m.ActiveTurns.Dec()
	defer func() { m.TurnDuration.Observe(time.Since(start).Seconds()) }()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.Validation(op, "session id is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.Validation(op, "message is empty")
	}

	if c.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TurnTimeout)
		defer cancel()
	}

	unlock, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, domain.External("session lock", err)
	}
	defer unlock()

	stored, err := c.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	log := c.log.With("sessionId", sessionID)
	log.Info().Str("phase", string(stored.Phase)).Int("turn", stored.Turns+1).Msg("turn received")
	c.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventTurnReceived, map[string]any{
		"sessionId": sessionID,
		"phase":     string(stored.Phase),
		"message":   message,
	})

	res := &TurnResult{SessionID: sessionID, Phase: stored.Phase, Previous: stored.Phase}

	if stored.Phase.Terminal() {
		res.Reply = terminalReply(stored)
		res.OrderID = stored.Order.ID
		res.Duration = time.Since(start)
		m.TurnsTotal.WithLabelValues(string(stored.Phase), "terminal").Inc()
		return res, nil
	}

	work := stored.Clone()
	replies, decisions, err := c.run(ctx, log, work, message)
	if err == nil {
		replies, err = c.commit(ctx, stored, work, message, replies)
	}
	if err != nil {
		c.fail(ctx, log, stored, res, err)
		res.Duration = time.Since(start)
		return res, err
	}

	res.Phase = work.Phase
	res.Transitions = decisions
	res.Reply = strings.Join(replies, "\n\n")
	if work.Order.Confirmed {
		res.OrderID = work.Order.ID
	}
	if len(work.Order.Items) > 0 {
		t := work.Order.ComputeTotals()
		res.Totals = &t
	}
	res.Duration = time.Since(start)

	m.TurnsTotal.WithLabelValues(string(stored.Phase), "ok").Inc()
	for _, d := range decisions {
		if !d.Changed() {
			continue
		}
		m.PhaseTransitions.WithLabelValues(string(d.From), string(d.To)).Inc()
		c.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventPhaseChanged, map[string]any{
			"sessionId": sessionID,
			"from":      string(d.From),
			"to":        string(d.To),
			"note":      d.Note,
		})
	}
	if work.Order.Confirmed && !stored.Order.Confirmed {
		m.OrdersConfirmed.Inc()
		c.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventOrderConfirmed, map[string]any{
			"sessionId": sessionID,
			"orderId":   work.Order.ID,
			"total":     res.Totals.Total.StringFixed(2),
		})
	}

	log.Info().
		Str("from", string(stored.Phase)).
		Str("to", string(work.Phase)).
		Int("hops", len(decisions)).
		Dur("duration", res.Duration).
		Msg("turn complete")
	return res, nil
}

// run drives the agent of the working session's phase, and with chaining
// enabled the agent of the phase it hands off to.
func (c *Coordinator) run(ctx context.Context, log *logging.Logger, work *domain.Session, message string) ([]string, []routing.Decision, error) {
	var (
		replies   []string
		decisions []routing.Decision
	)
	for hop := 0; ; hop++ {
		phase := work.Phase
		ag, ok := c.agents[phase]
		if !ok {
			return nil, nil, domain.Routing("turn", nil, "no agent serves phase %s", phase)
		}

		hctx := handoff.Build(work, phase)
		log.Debug().
			Str("phase", string(phase)).
			Int("contextTokens", hctx.EstimateTokens()).
			Msg("handing turn to agent")

		out, err := ag.Run(ctx, agent.Input{
			Context: hctx,
			Message: message,
			Tools:   agent.NewToolbox(work, c.services),
		})
		if err != nil {
			if ctx.Err() != nil && domain.KindOf(err) == "" {
				err = domain.External("agent", err)
			}
			return nil, nil, err
		}

		if err := domain.ApplyAll(work, out.Mutations); err != nil {
			return nil, nil, err
		}

		d, err := routing.Next(phase, out.Signal, work.Backtrack)
		if err != nil {
			return nil, nil, err
		}
		if d.Confirm {
			if work.CustomerName == "" || work.CustomerPhone == "" {
				return nil, nil, domain.Validation("confirm order", "customer name and phone are required")
			}
			if err := c.revalidate(ctx, work); err != nil {
				return nil, nil, err
			}
		}
		if err := routing.Apply(work, d, c.services.Now()); err != nil {
			return nil, nil, err
		}

		if out.Reply != "" {
			replies = append(replies, out.Reply)
		}
		decisions = append(decisions, d)

		if !c.cfg.ChainHandoffs || hop > 0 || !d.Changed() || d.To.Terminal() {
			return replies, decisions, nil
		}
		log.Debug().Str("to", string(d.To)).Msg("chaining handoff")
	}
}

// revalidate compares every line's price snapshot with the authoritative
// item record.
func (c *Coordinator) revalidate(ctx context.Context, work *domain.Session) error {
	items := c.services.Items
	if items == nil {
		return domain.External("items", errors.New("item source is not configured"))
	}

	var changes []domain.PriceChange
	seen := make(map[string]bool, len(work.Order.Items))
	for _, l := range work.Order.Items {
		if seen[l.ItemID] {
			continue
		}
		seen[l.ItemID] = true

		item, err := items.GetItem(ctx, l.ItemID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			changes = append(changes, domain.PriceChange{ItemID: l.ItemID, Name: l.Name, OldPrice: l.UnitPrice})
		case err != nil:
			return err
		case !item.Available:
			changes = append(changes, domain.PriceChange{ItemID: l.ItemID, Name: l.Name, OldPrice: l.UnitPrice, NewPrice: item.Price})
		case !item.Price.Equal(l.UnitPrice):
			changes = append(changes, domain.PriceChange{
				ItemID:    l.ItemID,
				Name:      l.Name,
				OldPrice:  l.UnitPrice,
				NewPrice:  item.Price,
				Available: true,
			})
		}
	}
	if len(changes) > 0 {
		return &domain.PriceMismatchError{Changes: changes}
	}
	return nil
}

// commit persists a newly confirmed order, then saves the working session.
// The order number reply is added once the number is final. After the order
// is stored the save no longer honors cancellation of ctx.
func (c *Coordinator) commit(ctx context.Context, before, work *domain.Session, message string, replies []string) ([]string, error) {
	confirmed := work.Order.Confirmed && !before.Order.Confirmed
	saveCtx := ctx
	if confirmed {
		if c.orders == nil {
			return nil, domain.External("orders", errors.New("order store is not configured"))
		}
		if err := c.orders.PersistOrder(ctx, work); err != nil {
			if domain.KindOf(err) == "" {
				err = domain.External("orders", err)
			}
			return nil, err
		}
		replies = append(replies, fmt.Sprintf(replyOrderNumber, work.Order.ID))
		saveCtx = context.WithoutCancel(ctx)
	}

	work.Record("user", message)
	work.Record("assistant", strings.Join(replies, "\n\n"))
	work.Turns++
	work.UpdatedAt = c.services.Now()

	if err := c.sessions.Save(saveCtx, work); err != nil {
		if confirmed {
			c.log.Error().Err(err).Str("sessionId", work.ID).Str("orderId", work.Order.ID).
				Msg("order persisted but session save failed")
		}
		return nil, domain.External("sessions", fmt.Errorf("save session %s: %w", work.ID, err))
	}
	return replies, nil
}

// fail fills res with the customer-facing reply for err. After a price
// mismatch the stored session gets the authoritative prices so the customer
// confirms against them next time.
func (c *Coordinator) fail(ctx context.Context, log *logging.Logger, stored *domain.Session, res *TurnResult, err error) {
	kind := domain.KindOf(err)
	res.Error = string(kind)
	if kind == "" {
		res.Error = "internal"
	}

	var pm *domain.PriceMismatchError
	switch {
	case errors.As(err, &pm):
		refreshed := stored.Clone()
		if rerr := refreshed.Order.Reprice(pm.Changes); rerr != nil {
			log.Error().Err(rerr).Msg("reprice after mismatch")
			res.Reply = replyInternal
			break
		}
		refreshed.UpdatedAt = c.services.Now()
		if serr := c.sessions.Save(ctx, refreshed); serr != nil {
			log.Error().Err(serr).Msg("save refreshed prices")
		}
		res.Reply = priceMismatchReply(pm.Changes, refreshed.Order.ComputeTotals(), c.services.Currency)
		if len(refreshed.Order.Items) > 0 {
			t := refreshed.Order.ComputeTotals()
			res.Totals = &t
		}
		log.Warn().Err(err).Msg("prices changed before confirmation")
	case kind == domain.KindValidation || kind == domain.KindNotFound:
		res.Reply = replyClarify
		log.Warn().Err(err).Msg("turn rejected")
	case kind == domain.KindExternal:
		res.Reply = replyRetry
		log.Warn().Err(err).Msg("collaborator failed, turn rolled back")
	case kind == domain.KindRouting:
		res.Reply = replyInternal
		log.Error().Err(err).Str("phase", string(stored.Phase)).Msg("routing failed")
	default:
		res.Reply = replyInternal
		log.Error().Err(err).Msg("turn failed")
	}

	result := "error"
	if domain.Recoverable(err) {
		result = "rejected"
	}
	metrics.Get().TurnsTotal.WithLabelValues(string(stored.Phase), result).Inc()
	c.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventTurnFailed, map[string]any{
		"sessionId": stored.ID,
		"phase":     string(stored.Phase),
		"error":     res.Error,
		"message":   err.Error(),
	})
}

// Session returns the stored session for id, or a fresh one if unknown.
func (c *Coordinator) Session(ctx context.Context, id string) (*domain.Session, error) {
	unlock, err := c.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.sessions.Load(ctx, id)
}

// Sessions lists stored sessions.
func (c *Coordinator) Sessions(ctx context.Context) ([]store.SessionInfo, error) {
	return c.sessions.List(ctx)
}

// Reset deletes the session so the next turn starts over in greeting.
func (c *Coordinator) Reset(ctx context.Context, id string) error {
	unlock, err := c.locker.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("reset session %s: %w", id, err)
	}
	c.log.Info().Str("sessionId", id).Msg("session reset")
	c.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventSessionReset, map[string]any{"sessionId": id})
	return nil
}
