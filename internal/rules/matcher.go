// Package rules implements the Rules Matcher: symbol/exchange/side
// filtering against a user's exit-rule set, refreshed periodically via an
// atomic pointer swap so in-flight matches never observe a torn update.
package rules

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
	"github.com/devanshjainms/exitengine/pkg/money"
)

// DefaultRefreshInterval is the Rules Refresh cadence: once per second.
const DefaultRefreshInterval = 1 * time.Second

// Store is the repository surface the Rules Matcher needs.
type Store interface {
	ListEnabled(ctx context.Context, userID int64) ([]*models.ExitRule, error)
}

// Matcher holds one user's current rule set and matches positions against
// it in priority order. The rule set is replaced wholesale by Reload; a
// rule snapshot already handed to a live ActiveTrade is unaffected by a
// later replacement.
type Matcher struct {
	userID int64
	store  Store
	log    *applog.Logger

	rules atomic.Pointer[[]*models.ExitRule]
}

// NewMatcher builds a Matcher with an empty rule set; call Reload or
// StartRefresh before relying on Match.
func NewMatcher(userID int64, store Store, log *applog.Logger) *Matcher {
	if log == nil {
		log = applog.L()
	}
	m := &Matcher{
		userID: userID,
		store:  store,
		log:    log.WithComponent("rules_matcher").With(applog.UserID(userID)),
	}
	empty := []*models.ExitRule{}
	m.rules.Store(&empty)
	return m
}

// Reload fetches the user's enabled rules, sorts them by ascending
// priority, and swaps them in as a single pointer store — readers never
// observe a partially-updated rule set.
func (m *Matcher) Reload(ctx context.Context) error {
	loaded, err := m.store.ListEnabled(ctx, m.userID)
	if err != nil {
		return err
	}
	sorted := make([]*models.ExitRule, len(loaded))
	copy(sorted, loaded)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	m.rules.Store(&sorted)
	return nil
}

// StartRefresh reloads once immediately, then again every interval until
// ctx is cancelled. A reload error is logged and the previous rule set
// stays in effect.
func (m *Matcher) StartRefresh(ctx context.Context, interval time.Duration) {
	if err := m.Reload(ctx); err != nil {
		m.log.Warn("initial rule load failed", applog.Err(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Reload(ctx); err != nil {
				m.log.Warn("rule reload failed", applog.Err(err))
			}
		}
	}
}

// RuleCount returns how many rules are currently loaded, for Status
// reporting.
func (m *Matcher) RuleCount() int {
	rules := m.rules.Load()
	if rules == nil {
		return 0
	}
	return len(*rules)
}

// Match returns the first matching enabled rule for pos, along with its
// computed tp/sl prices (nil when that side is disabled). ok is false when
// no rule matches and the position should be skipped.
func (m *Matcher) Match(pos *models.Position) (rule *models.ExitRule, tpPrice, slPrice *float64, ok bool) {
	rulesPtr := m.rules.Load()
	if rulesPtr == nil {
		return nil, nil, nil, false
	}

	posType := pos.Type()
	for _, r := range *rulesPtr {
		if !r.Enabled {
			continue
		}
		if r.Exchange != "" && !strings.EqualFold(r.Exchange, pos.Exchange) {
			continue
		}
		if r.ApplyTo != models.ApplyAll && string(r.ApplyTo) != string(posType) {
			continue
		}
		if !matchSymbol(r.SymbolPattern, pos.TradingSymbol) {
			continue
		}

		snap := r.Snapshot()
		entry := pos.EntryPrice()
		side := moneySide(posType)

		var tp, sl *float64
		if snap.TakeProfit != nil && snap.TakeProfit.Enabled {
			v := money.TakeProfitPrice(money.ConditionType(snap.TakeProfit.ConditionType), side, entry, snap.TakeProfit.Value)
			tp = &v
		}
		if snap.StopLoss != nil && snap.StopLoss.Enabled {
			v := money.StopLossPrice(money.ConditionType(snap.StopLoss.ConditionType), side, entry, snap.StopLoss.Value)
			sl = &v
		}
		return snap, tp, sl, true
	}
	return nil, nil, nil, false
}

func moneySide(t models.PositionType) money.Side {
	if t == models.PositionShort {
		return money.Short
	}
	return money.Long
}

// matchSymbol implements the pattern-matching rule: a pattern containing
// '*' or '?' becomes a case-insensitive full-match regex (*→.*, ?→.);
// otherwise the pattern must equal symbol, case-insensitive.
func matchSymbol(pattern, symbol string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return strings.EqualFold(pattern, symbol)
	}
	re, err := globToRegex(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(symbol)
}

func globToRegex(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
