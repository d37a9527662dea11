package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/mindfence/decisioncore/clock"
	"github.com/mindfence/decisioncore/config"
	"github.com/mindfence/decisioncore/coordinator"
	"github.com/mindfence/decisioncore/diagnostics"
	"github.com/mindfence/decisioncore/foreground"
	"github.com/mindfence/decisioncore/housekeeping"
	"github.com/mindfence/decisioncore/intention"
	"github.com/mindfence/decisioncore/statetable"
	"github.com/mindfence/decisioncore/store"
	"github.com/mindfence/decisioncore/surface"
	"github.com/mindfence/decisioncore/uihost"
)

var (
	configPathFlag string
	dbPathFlag     string
	adminAddrFlag  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decision core in-process, exposing an admin/diagnostics HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPathFlag, "config", "decisioncore.toml", "path to the TOML config file")
	serveCmd.Flags().StringVar(&dbPathFlag, "db", "decisioncore.db", "path to the on-device SQLite durable store")
	serveCmd.Flags().StringVar(&adminAddrFlag, "addr", ":9090", "admin/diagnostics HTTP listen address")
	rootCmd.AddCommand(serveCmd)
}

// core is the full in-process wiring of every component named in the spec:
// clock, stores, foreground tracker, intention subsystem, surface bridge,
// Coordinator, config hot-reload, and housekeeping sweep.
type core struct {
	tables      *statetable.Tables
	clk         *clock.Clock
	quota       *store.QuotaStore
	monitored   *store.MonitoredAppsStore
	intentions  *store.IntentionStore
	returnCtx   *store.ReturnContextStore
	fgTracker   *foreground.Tracker
	bridge      *surface.Bridge
	coord       *coordinator.Coordinator
	intentionSS *intention.Subsystem
	cfgManager  *config.Manager
	sweeper     *housekeeping.Sweeper
	host        *uihost.Host
}

func buildCore(configPath, dbPath string) (*core, error) {
	if err := sentry.Init(sentry.ClientOptions{}); err != nil {
		log.Printf("serve: sentry init failed (continuing without crash reporting): %v", err)
	}

	backend, err := store.OpenSQLiteBackend(dbPath)
	if err != nil {
		return nil, err
	}

	quota := store.NewQuotaStore(backend)
	monitored := store.NewMonitoredAppsStore(backend)
	intentions := store.NewIntentionStore(backend)
	returnCtx := store.NewReturnContextStore(backend)

	clk := clock.New()
	tables := statetable.New()

	classifier := &foreground.StaticClassifier{}
	host := uihost.New()
	bridge := surface.New(host)

	// fgTracker and coord each need the other: fgTracker's notify callback
	// targets coord, and coord's ForegroundSource is fgTracker. Forward-
	// declare coord so the closure can capture it by reference; it is only
	// invoked at runtime, well after both are assigned below.
	var coord *coordinator.Coordinator

	fgTracker := foreground.New(classifier, monitored, func(app string, source foreground.Source, at time.Time) {
		coord.OnMonitoredAppEntry(app, source, false, intentionLookupFor(intentions))
	})

	coord = coordinator.New(tables, clk, bridge, fgTracker, quota, monitored)

	intentionSS := intention.New(clk, intentions, fgTracker, coord, func(app string, now time.Time) {
		coord.OnMonitoredAppEntry(app, foreground.SourceIntentionExpiry, true, intentionLookupFor(intentions))
	})

	host.Attach(bridge)
	host.Wire(coord)

	cfgManager := config.New(configPath, quota, monitored, tables)
	if err := cfgManager.Load(); err != nil {
		log.Printf("serve: initial config load failed: %v", err)
	}
	if err := cfgManager.StartWatch(); err != nil {
		log.Printf("serve: config watch disabled: %v", err)
	}

	sweeper := housekeeping.New(tables, clk, housekeeping.DefaultSchedule)
	sweeper.Start()

	return &core{
		tables:      tables,
		clk:         clk,
		quota:       quota,
		monitored:   monitored,
		intentions:  intentions,
		returnCtx:   returnCtx,
		fgTracker:   fgTracker,
		bridge:      bridge,
		coord:       coord,
		intentionSS: intentionSS,
		cfgManager:  cfgManager,
		sweeper:     sweeper,
		host:        host,
	}, nil
}

func intentionLookupFor(intentions *store.IntentionStore) func(app string, now time.Time) int64 {
	return func(app string, now time.Time) int64 {
		until, ok := intentions.Get(app, now)
		if !ok {
			return 0
		}
		remaining := until - now.UnixMilli()
		if remaining < 0 {
			return 0
		}
		return remaining
	}
}

func serve() error {
	c, err := buildCore(configPathFlag, dbPathFlag)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/diagnostics/ws", diagnostics.ServeWS)
	mux.Handle("/ui/", http.StripPrefix("/ui", c.host.ServeMux()))
	mux.HandleFunc("/quota", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(c.quota.Snapshot())
	})
	mux.HandleFunc("/quota/refill", func(w http.ResponseWriter, r *http.Request) {
		c.quota.Refill()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/config/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := c.cfgManager.Load(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		apps := c.tables.AllApps()
		out := make(map[string]statetable.PerAppState, len(apps))
		for _, app := range apps {
			if st, ok := c.tables.PeekAppUnlocked(app); ok {
				out[app] = st
			}
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/entry", func(w http.ResponseWriter, r *http.Request) {
		app := r.URL.Query().Get("app")
		if app == "" {
			http.Error(w, "missing app query param", http.StatusBadRequest)
			return
		}
		c.fgTracker.OnForegroundChanged(app, c.clk.Now())
		w.WriteHeader(http.StatusNoContent)
	})

	log.Printf("decisionctl serve: admin/diagnostics listening on %s", adminAddrFlag)
	return http.ListenAndServe(adminAddrFlag, mux)
}
