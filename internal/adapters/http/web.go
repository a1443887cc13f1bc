package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"growthgame/internal/adapters/email"
	"growthgame/internal/adapters/http/middleware"
	"growthgame/internal/adapters/http/perf"
	"growthgame/internal/adapters/realtime"
	accountStore "growthgame/internal/adapters/storage/account"
	historyStore "growthgame/internal/adapters/storage/history"
	ledgerStore "growthgame/internal/adapters/storage/ledger"
	organizationStore "growthgame/internal/adapters/storage/organization"
	profileStore "growthgame/internal/adapters/storage/profile"
	referralStore "growthgame/internal/adapters/storage/referral"
	teamStore "growthgame/internal/adapters/storage/team"
	"growthgame/internal/application/overlay"
	"growthgame/internal/domain/plan"
)

// Stores holds all storage dependencies.
type Stores struct {
	Accounts      accountStore.Store
	Organizations organizationStore.Store
	Profiles      profileStore.Store
	Referrals     referralStore.Store
	History       historyStore.Store
	Ledger        ledgerStore.Store
	Team          teamStore.Store
}

// Services holds the shared in-process collaborators.
type Services struct {
	Catalog   *plan.Catalog
	Overlays  *overlay.Manager
	Hub       *realtime.Hub
	Tokens    *middleware.Tokens
	Mailer    email.Sender // nil disables invites
	Collector *perf.Collector
}

// Options carries the tunables read from configuration.
type Options struct {
	BonusPoints        int
	StaffSharePercent  decimal.Decimal
	ApplyStaffShare    bool
	AppURL             string
	TeamRetryDelay     time.Duration
	CSRFKey            []byte
	SecureCookies      bool
	TrustedOrigins     []string
	SlowRequestMs      int
	RateLimitPerSecond int
}

// DefaultRateLimitPerSecond is the per-IP request budget.
const DefaultRateLimitPerSecond = 20

var (
	stores   *Stores
	services *Services
	options  Options
	upgrader *websocket.Upgrader
)

// timeNow is a variable for testability.
var timeNow = time.Now

// NewMux wires HTTP handlers for the app. The returned func stops the rate
// limiter's sweeper and must be called once the server is done.
// PRE: s and svc are fully populated; opts.CSRFKey is 32 bytes
// POST: returns the handler with the middleware chain applied
func NewMux(s *Stores, svc *Services, opts Options) (http.Handler, func()) {
	stores = s
	services = svc
	options = opts
	upgrader = realtime.Upgrader(opts.TrustedOrigins)

	mux := http.NewServeMux()
	registerRoutes(mux)

	rate := opts.RateLimitPerSecond
	if rate <= 0 {
		rate = DefaultRateLimitPerSecond
	}
	limiter := middleware.NewRateLimiter(rate, time.Second)

	// Outermost last: Timing -> Recover -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> mux
	handler := middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.SecureCookies, opts.TrustedOrigins),
		middleware.Auth(svc.Tokens),
		middleware.RateLimit(limiter),
		middleware.Recover,
		middleware.Timing(svc.Collector, opts.SlowRequestMs),
	)
	return handler, limiter.Close
}
