package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/soyeahso/sawt/internal/agent"
	"github.com/soyeahso/sawt/internal/catalog"
	"github.com/soyeahso/sawt/internal/config"
	"github.com/soyeahso/sawt/internal/coordinator"
	"github.com/soyeahso/sawt/internal/hooks"
	"github.com/soyeahso/sawt/internal/llm"
	"github.com/soyeahso/sawt/internal/logging"
	"github.com/soyeahso/sawt/internal/menu"
	"github.com/soyeahso/sawt/internal/store"
)

// loadConfig reads the config file. Unless --log-level was given, the root
// logger is rebuilt from the logging section.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel == "" {
		l, closer, err := logging.Setup(os.Stderr, logging.Options{
			Level: cfg.Logging.Level,
			Style: cfg.Logging.ConsoleStyle,
			File:  cfg.Logging.File,
		})
		if err != nil {
			return cfg, fmt.Errorf("setting up logging: %w", err)
		}
		log, logCloser = l, closer
	}
	return cfg, nil
}

// app holds the collaborators every conversational command shares.
type app struct {
	cfg      config.Config
	db       *store.DB
	catalog  *store.CatalogStore
	sessions store.SessionStore
	index    *menu.Index
	hours    catalog.Hours
	hooks    *hooks.Manager
	registry *llm.Registry
	coord    *coordinator.Coordinator
}

// newApp opens the store, seeds an empty catalog, builds the menu index and
// wires the phase agents into a coordinator.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	dbPath := ":memory:"
	if cfg.Store.Driver != "memory" {
		dbPath = cfg.Store.Path
		if dbPath == "" {
			dbPath = paths.Database
		}
	}
	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	a.catalog = store.NewCatalogStore(db)

	if cfg.Store.Driver == "memory" {
		a.sessions = store.NewMemorySessionStore()
		log.Info().Msg("using in-memory session store")
	} else {
		a.sessions = store.NewSQLiteSessionStore(db)
		log.Info().Str("path", dbPath).Msg("using SQLite session store")
	}

	if err := a.seedIfEmpty(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.openIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}

	hours, err := restaurantHours(cfg.Restaurant)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.hours = hours

	a.registry = llm.NewRegistryFromConfig(cfg.LLM, log)
	if providers := a.registry.List(); len(providers) > 0 {
		log.Info().Strs("providers", providers).Msg("LLM providers available")
	} else {
		log.Warn().Msg("no LLM providers configured, turns will fail until llm.providers is set")
	}

	a.hooks = hooks.NewManager(log)
	if n := hooks.RegisterConfig(a.hooks, cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("config hooks registered")
	}

	a.coord = coordinator.New(cfg.Coordinator, coordinator.Deps{
		Sessions: a.sessions,
		Agents:   agent.NewAgents(cfg, a.registry, log),
		Services: agent.Services{
			Menu:           a.index,
			Coverage:       a.catalog,
			Items:          a.catalog,
			Promos:         a.catalog,
			RestaurantName: cfg.Restaurant.Name,
			Hours:          hours,
			PickupBranch:   cfg.Restaurant.PickupBranch,
			Currency:       cfg.Restaurant.Currency,
		},
		Orders: a.catalog,
		Hooks:  a.hooks,
	}, log)

	return a, nil
}

func (a *app) seedIfEmpty(ctx context.Context) error {
	items, err := a.catalog.ListItems(ctx, "")
	if err != nil {
		return fmt.Errorf("reading menu: %w", err)
	}
	if len(items) > 0 {
		return nil
	}
	sd, err := store.DefaultSeed()
	if err != nil {
		return err
	}
	res, err := a.catalog.Seed(ctx, sd)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	log.Info().Int("items", res.Items).Int("districts", res.Districts).Int("promos", res.Promos).Msg("empty catalog seeded with default data")
	return nil
}

// openIndex opens the menu index and builds it when it is empty.
func (a *app) openIndex(ctx context.Context) error {
	embedder, err := newEmbedder(a.cfg)
	if err != nil {
		return err
	}
	var indexPath string
	if a.cfg.Store.Driver != "memory" {
		indexPath = a.cfg.Menu.IndexPath
		if indexPath == "" {
			indexPath = paths.Index
		}
	}
	a.index, err = menu.NewIndex(embedder, a.catalog, menu.Options{
		Path:     indexPath,
		MinScore: a.cfg.Menu.MinScore,
		Limit:    a.cfg.Menu.Limit,
	}, log)
	if err != nil {
		return err
	}
	if a.index.Count() == 0 {
		if _, err := a.reindex(ctx); err != nil {
			// Search falls back to keyword matching.
			log.Warn().Err(err).Msg("menu index build failed")
		}
	}
	return nil
}

// reindex rebuilds the menu index from the catalog.
func (a *app) reindex(ctx context.Context) (int, error) {
	items, err := a.catalog.ListItems(ctx, "")
	if err != nil {
		return 0, err
	}
	return a.index.Build(ctx, items)
}

// Close releases the database.
func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func newEmbedder(cfg config.Config) (menu.Embedder, error) {
	switch cfg.Menu.Embedder {
	case "", "hash":
		return menu.HashEmbedder{}, nil
	case "openai":
		p, ok := cfg.LLM.Providers[cfg.Menu.Provider]
		if !ok {
			return nil, &config.ConfigError{Message: fmt.Sprintf("menu.provider: unknown provider %q", cfg.Menu.Provider)}
		}
		return menu.NewOpenAIEmbedder(p.BaseURL, p.APIKey, cfg.Menu.EmbeddingModel), nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("menu.embedder: unknown embedder %q", cfg.Menu.Embedder)}
	}
}

func restaurantHours(r config.RestaurantConfig) (catalog.Hours, error) {
	loc := time.UTC
	if r.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(r.Timezone)
		if err != nil {
			return catalog.Hours{}, fmt.Errorf("restaurant.timezone: %w", err)
		}
	}
	return catalog.Hours{Open: r.OpenHour, Close: r.CloseHour, Location: loc}, nil
}

// validated loads the config and fails on validation issues.
func validated() (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	issues := config.Validate(&cfg)
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	if len(issues) > 0 {
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}
