// cmd/estimator/session.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"offer-estimation/internal/catalog"
	"offer-estimation/internal/common/config"
	"offer-estimation/internal/common/database"
	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/estimation/interpreter"
	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/estimation/matcher"
	"offer-estimation/internal/estimation/offertext"
	"offer-estimation/internal/estimation/pipeline"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/estimation/rules"
	"offer-estimation/internal/store"
)

// session holds what one command invocation needs. The store is opened on
// demand because interpret works without a database.
type session struct {
	cfg     *config.Config
	zap     *zap.Logger
	log     logger.Logger
	db      *sql.DB
	store   *store.SQLStore
	closers []func()
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.sqlitePath != "" {
		cfg.Database.SQLite.Path = o.sqlitePath
	}
	return cfg, nil
}

func (o *rootOptions) newSession() (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	zapLog := logger.New(o.logLevel, "console")
	return &session{
		cfg: cfg,
		zap: zapLog,
		log: logger.NewZapAdapter(zapLog),
	}, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	_ = s.zap.Sync()
}

// openStore opens the SQLite database and creates missing tables.
func (s *session) openStore(ctx context.Context) (*store.SQLStore, error) {
	if s.store != nil {
		return s.store, nil
	}
	db, err := database.NewSQLite(ctx, s.cfg.Database.SQLite)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	s.db = db
	s.store = store.New(db, s.log)
	s.closers = append(s.closers, func() { db.Close() })
	return s.store, nil
}

func (s *session) learner(ctx context.Context) (*learning.Engine, error) {
	st, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return learning.NewEngine(st, s.cfg.Estimation.Coefficients, s.cfg.Learning, s.log), nil
}

// coefficients returns the configured coefficients with the recorded
// adjustment trail applied.
func (s *session) coefficients(ctx context.Context) (calculation.Coefficients, error) {
	engine, err := s.learner(ctx)
	if err != nil {
		return calculation.Coefficients{}, err
	}
	return engine.CurrentCoefficients(ctx, s.cfg.Estimation.Coefficients)
}

func (s *session) interpreter() (*interpreter.Interpreter, error) {
	rs, err := rules.Default()
	if s.cfg.Estimation.RulesPath != "" {
		rs, err = rules.Load(s.cfg.Estimation.RulesPath)
	}
	if err != nil {
		return nil, err
	}
	return interpreter.New(rs, interpreter.WithLogger(s.log))
}

func (s *session) textEngine() (*offertext.Engine, error) {
	if s.cfg.Estimation.TemplatesPath == "" {
		return offertext.NewDefaultEngine(s.log), nil
	}
	templates, err := offertext.LoadTemplatesOverDefaults(s.cfg.Estimation.TemplatesPath)
	if err != nil {
		return nil, err
	}
	return offertext.NewEngine(templates, s.log), nil
}

// catalogLookup builds the configured catalog source. A non-empty path
// forces a static catalog read from that file.
func (s *session) catalogLookup(ctx context.Context, path string) (catalog.Lookup, error) {
	cc := s.cfg.Estimation.Catalog
	if path != "" {
		cc.Source, cc.Path = config.CatalogStatic, path
	}

	var lookup catalog.Lookup
	switch cc.Source {
	case config.CatalogSQL:
		if _, err := s.openStore(ctx); err != nil {
			return nil, err
		}
		lookup = catalog.NewSQLLookup(s.db)
	case config.CatalogElasticsearch:
		es, err := database.NewElasticsearch(s.cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		lookup = catalog.NewElasticLookup(es.Client, cc.Index)
	default:
		var (
			static *catalog.StaticLookup
			err    error
		)
		if cc.Path != "" {
			static, err = catalog.LoadStatic(cc.Path)
		} else {
			static, err = catalog.DefaultStatic()
		}
		if err != nil {
			return nil, err
		}
		lookup = static
	}

	if cc.CacheTTL > 0 && s.cfg.Database.Redis.Address != "" {
		redis := database.NewRedis(s.cfg.Database.Redis)
		s.closers = append(s.closers, func() { redis.Close() })
		lookup = catalog.NewCachedLookup(lookup, redis.Client, time.Duration(cc.CacheTTL)*time.Second, s.log)
	}
	return lookup, nil
}

func (s *session) pipeline(ctx context.Context, catalogPath string) (*pipeline.Pipeline, error) {
	coefficients, err := s.coefficients(ctx)
	if err != nil {
		return nil, err
	}
	lookup, err := s.catalogLookup(ctx, catalogPath)
	if err != nil {
		return nil, err
	}
	in, err := s.interpreter()
	if err != nil {
		return nil, err
	}
	texts, err := s.textEngine()
	if err != nil {
		return nil, err
	}
	return pipeline.New(
		in,
		matcher.New(lookup, coefficients, s.log),
		calculation.NewEngine(coefficients, s.log),
		risk.NewEngine(risk.DefaultRules(), s.cfg.Risk.WithMinimumMargin(coefficients.MinimumMarginPct), s.log),
		texts,
		s.log,
	), nil
}

// readDescription takes the description from a file, the arguments or stdin,
// in that order.
func readDescription(cmd *cobra.Command, args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read description: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read description from stdin: %w", err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
