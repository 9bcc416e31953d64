package greeks

import (
	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/models"
	"github.com/tantralabs/derivuniverse/utils"
)

// PricingModel selects which theoretical-price function TheoreticalPrice
// uses; BinomialTree and ForwardTree both resolve to the forward-tree
// walk with a Black-Scholes fallback on pathological inputs.
type PricingModel int

const (
	BlackScholes PricingModel = iota
	BinomialTree
	ForwardTree
)

// Config bundles the shared pricing configuration one canonical's whole
// batch of per-contract Engines uses: a risk-free rate and dividend
// yield model (both flat constants here; the source's design leaves room
// for term-structure models but never requires one), a pricing model
// choice, and the tree step count when a tree model is selected.
type Config struct {
	RiskFreeRate  float64
	DividendYield float64
	PricingModel  PricingModel
	TreeSteps     int
}

// DefaultConfig defaults to a zero risk-free rate and dividend yield,
// with a 200-step forward tree as the tree-model default.
func DefaultConfig() Config {
	return Config{RiskFreeRate: 0, DividendYield: 0, PricingModel: ForwardTree, TreeSteps: 200}
}

// Engine holds the running implied-volatility and Greeks state for one
// option contract, updated bar by bar from the shared Slice stream the
// orchestrator also feeds into the contract's Entry.
type Engine struct {
	cfg        Config
	option     models.Symbol
	mirror     models.Symbol
	haveMirror bool

	seed         float64
	underlyingPx float64
	lastT        float64
	lastIV       float64
	lastGreeks   models.Greeks
	haveIV       bool
}

// NewEngine builds an Engine for option, configured with cfg. SeedRealized
// should be called once with the underlying's recent daily closes before
// the first Update, to ground the Newton-Raphson search in a realized-vol
// estimate rather than an arbitrary constant.
func NewEngine(option models.Symbol, cfg Config) *Engine {
	e := &Engine{cfg: cfg, option: option, seed: 0.5}
	if m, ok := option.Mirror(); ok {
		e.mirror, e.haveMirror = m, true
	}
	return e
}

// SeedRealized grounds the initial IV guess in the underlying's recent
// realized volatility (SeedVolatility, via go-talib's StdDev).
func (e *Engine) SeedRealized(dailyCloses []float64) {
	e.seed = SeedVolatility(dailyCloses)
}

// Update pushes one Slice's bar into the engine: it reads the option's
// own quote, the underlying's quote or trade price, and the mirror
// option's quote if present, then re-solves IV and recomputes the five
// Greeks. Any panic from a pathological pricing input is swallowed, per
// the resilience rule the design calls for: a single bad bar must never
// abort the batch.
func (e *Engine) Update(s models.Slice) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("greeks: recovered panic updating %s: %v\n", e.option.ID(), r)
		}
	}()

	if e.option.Underlying == nil {
		return
	}
	if uq, ok := s.QuoteBarFor(*e.option.Underlying); ok {
		e.underlyingPx = uq.Mid()
	} else if ut, ok := s.TradeBarFor(*e.option.Underlying); ok {
		e.underlyingPx = ut.Close
	}
	if e.underlyingPx <= 0 {
		return
	}

	oq, ok := s.QuoteBarFor(e.option)
	if !ok {
		return
	}
	mid := oq.Mid()
	if mid <= 0 {
		return
	}

	t := utils.YearsBetween(s.Time, e.option.Expiry)
	if t <= 0 {
		return
	}
	e.lastT = t

	seed := e.seed
	if e.haveMirror {
		if mq, ok := s.QuoteBarFor(e.mirror); ok {
			callMid, putMid := mid, mq.Mid()
			if *e.option.Right == models.Put {
				callMid, putMid = mq.Mid(), mid
			}
			if refined, ok := ParityRefinedSeed(callMid, putMid, e.underlyingPx, e.option.Strike, t,
				e.cfg.RiskFreeRate, e.cfg.DividendYield, true, true); ok && refined > 0 {
				seed = clampIV(refined / e.underlyingPx)
			}
		}
	}

	iv, err := ImpliedVolatility(mid, e.underlyingPx, e.option.Strike, t,
		e.cfg.RiskFreeRate, e.cfg.DividendYield, *e.option.Right, seed)
	if err != nil {
		logger.Debugf("greeks: %s implied vol did not converge: %v\n", e.option.ID(), err)
		return
	}

	e.lastIV = iv
	e.seed = iv // next bar starts near where this one landed
	e.lastGreeks = Compute(iv, e.underlyingPx, e.option.Strike, t, e.cfg.RiskFreeRate, e.cfg.DividendYield, *e.option.Right)
	e.haveIV = true
}

// TheoreticalPrice prices the contract at iv using the configured pricing
// model, at the time-to-expiry captured by the last Update.
func (e *Engine) TheoreticalPrice(iv float64) (float64, error) {
	right := models.Call
	if e.option.Right != nil {
		right = *e.option.Right
	}
	if e.cfg.PricingModel == BlackScholes {
		return BlackTheoreticalPrice(iv, e.underlyingPx, e.option.Strike, e.lastT, e.cfg.RiskFreeRate, e.cfg.DividendYield, right)
	}
	return Price(iv, e.underlyingPx, e.option.Strike, e.lastT, e.cfg.RiskFreeRate, e.cfg.DividendYield, right, e.cfg.TreeSteps)
}

// GetGreeks snapshots the current (iv, delta, gamma, vega, theta, rho);
// Lambda is always 0, matching the design's snapshot shape. ok is false
// until at least one Update has produced a converged IV.
func (e *Engine) GetGreeks() (iv float64, g models.Greeks, ok bool) {
	return e.lastIV, e.lastGreeks, e.haveIV
}
