package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	emailPkg "growthgame/internal/adapters/email"
	web "growthgame/internal/adapters/http"
	"growthgame/internal/adapters/http/middleware"
	"growthgame/internal/adapters/http/perf"
	"growthgame/internal/adapters/realtime"
	"growthgame/internal/adapters/storage"
	accountStore "growthgame/internal/adapters/storage/account"
	historyStore "growthgame/internal/adapters/storage/history"
	ledgerStore "growthgame/internal/adapters/storage/ledger"
	organizationStore "growthgame/internal/adapters/storage/organization"
	profileStore "growthgame/internal/adapters/storage/profile"
	referralStore "growthgame/internal/adapters/storage/referral"
	settingStore "growthgame/internal/adapters/storage/setting"
	teamStore "growthgame/internal/adapters/storage/team"
	"growthgame/internal/application/orchestrators"
	"growthgame/internal/application/overlay"
	"growthgame/internal/config"
	"growthgame/internal/domain/plan"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("GROWTH_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	// WAL mode, foreign keys and busy timeout on every connection
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		return err
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		return err
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQueryMs)

	stores := &web.Stores{
		Accounts:      accountStore.NewSQLiteStore(timedDB),
		Organizations: organizationStore.NewSQLiteStore(timedDB),
		Profiles:      profileStore.NewSQLiteStore(timedDB),
		Referrals:     referralStore.NewSQLiteStore(timedDB),
		History:       historyStore.NewSQLiteStore(timedDB),
		Ledger:        ledgerStore.NewSQLiteStore(timedDB),
		Team:          teamStore.NewSQLiteStore(timedDB),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seeded, err := orchestrators.ExecuteSeedOrganization(ctx, orchestrators.SeedOrganizationInput{
		OrganizationName: cfg.Seed.OrganizationName,
		OwnerName:        cfg.Seed.OwnerName,
		OwnerEmail:       cfg.Seed.OwnerEmail,
		OwnerPassword:    cfg.Seed.OwnerPassword,
	}, orchestrators.SeedOrganizationDeps{
		Organizations: stores.Organizations,
		Accounts:      stores.Accounts,
		Team:          stores.Team,
		Now:           time.Now,
		GenerateID:    func() string { return uuid.New().String() },
	})
	if err != nil {
		return err
	}
	if seeded {
		slog.Info("seed_event", "event", "organization_seeded", "owner_email", cfg.Seed.OwnerEmail)
	}

	catalog, err := plan.DefaultCatalog()
	if err != nil {
		return err
	}
	settings := settingStore.NewSQLiteStore(timedDB)
	overlays := overlay.NewManager(settings, overlay.NewSyncer(settings, cfg.OverlayDebounce, time.Now))

	var mailer emailPkg.Sender
	if cfg.Email.ResendKey != "" {
		mailer = emailPkg.NewResendSender(cfg.Email.ResendKey, cfg.Email.From, cfg.Email.ReplyTo)
		slog.Info("email_event", "event", "sender_configured", "provider", "resend")
	} else {
		mailer = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_event", "event", "delivery_disabled", "reason", "GROWTH_RESEND_KEY unset")
		}
	}

	jwtSecret := cfg.Auth.JWTSecret
	csrfKey := []byte(cfg.Auth.CSRFKey)
	if !cfg.IsProduction() {
		// Development tokens and CSRF cookies do not survive a restart.
		if jwtSecret == "" {
			jwtSecret = randomHex(32)
		}
		if len(csrfKey) != 32 {
			csrfKey = []byte(randomHex(16))
		}
	}

	hub := realtime.NewHub()
	stopNotifier := orchestrators.StartFollowUpNotifier(ctx, orchestrators.FollowUpNotifyDeps{
		Organizations: stores.Organizations,
		Referrals:     stores.Referrals,
		Dismissals:    overlays,
		Publisher:     hub,
		Now:           time.Now,
	}, cfg.FollowUpInterval)

	handler, closeMux := web.NewMux(stores, &web.Services{
		Catalog:   catalog,
		Overlays:  overlays,
		Hub:       hub,
		Tokens:    middleware.NewTokens(jwtSecret, cfg.Auth.TokenTTL, time.Now),
		Mailer:    mailer,
		Collector: collector,
	}, web.Options{
		BonusPoints:       cfg.Ledger.ReferralBonusPoints,
		StaffSharePercent: cfg.Ledger.BarberReferralConversionPercent.Decimal,
		ApplyStaffShare:   cfg.Ledger.ApplyStaffShare,
		AppURL:            cfg.Email.AppURL,
		TeamRetryDelay:    cfg.TeamRetryDelay,
		CSRFKey:           csrfKey,
		SecureCookies:     cfg.IsProduction(),
		SlowRequestMs:     cfg.SlowRequestMs,
	})
	defer closeMux()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_event", "event", "started", "addr", cfg.Addr, "version", version,
			"env", cfg.Env, "schema", storage.LatestSchemaVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("server_event", "event", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopNotifier()
	hub.CloseAll()
	err = srv.Shutdown(shutdownCtx)
	// Pending overlay writes are flushed after the last request finished.
	if ferr := overlays.Close(shutdownCtx); ferr != nil {
		slog.Error("overlay_event", "event", "flush_failed", "error", ferr.Error())
	}
	return err
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
