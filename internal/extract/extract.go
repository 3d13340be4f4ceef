// Package extract orchestrates one extraction run: Introspector -> Seed
// Parser -> Traversal Engine -> Row Fetcher -> Topological Sorter ->
// Validator -> Anonymizer -> Emitter.
package extract

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/halvorsen/subsetdb/internal/anonymize"
	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/halvorsen/subsetdb/internal/dialect"
	"github.com/halvorsen/subsetdb/internal/emit"
	"github.com/halvorsen/subsetdb/internal/fetch"
	"github.com/halvorsen/subsetdb/internal/introspect"
	"github.com/halvorsen/subsetdb/internal/lock"
	"github.com/halvorsen/subsetdb/internal/logger"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/seedspec"
	"github.com/halvorsen/subsetdb/internal/topo"
	"github.com/halvorsen/subsetdb/internal/traverse"
	"github.com/halvorsen/subsetdb/internal/validate"
	"github.com/halvorsen/subsetdb/internal/xerrors"
)

// Result summarizes one completed extraction run.
type Result struct {
	ProfileName      string
	TableRowCounts   map[string]int
	DeferredEdges    int
	ValidationIssues []xerrors.ValidationViolation
}

// Orchestrator runs extraction profiles against one database connection.
type Orchestrator struct {
	db  *sql.DB
	cfg *config.Config
	log *logger.Logger
}

// New creates an Orchestrator.
func New(db *sql.DB, cfg *config.Config, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Orchestrator{db: db, cfg: cfg, log: log}
}

// Run executes the named profile end-to-end, guarded by a Postgres
// advisory lock so two instances never extract the same profile
// concurrently against the same source.
func (o *Orchestrator) Run(ctx context.Context, profileName string) (*Result, error) {
	var result *Result
	err := lock.WithProfileLock(ctx, o.db, profileName, func() error {
		r, err := o.run(ctx, profileName)
		result = r
		return err
	})
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, profileName string) (*Result, error) {
	profile, ok := o.cfg.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", profileName)
	}
	log := o.log.WithProfile(profileName)

	graph, err := o.buildGraph(ctx, profile)
	if err != nil {
		return nil, err
	}

	anonCfg := o.cfg.GetProfileAnonymize(profileName)
	if anonCfg.Enabled {
		if err := introspect.ApplyAnonymizeConfig(graph, anonCfg.Fields, anonCfg.NullFields); err != nil {
			return nil, err
		}
	}

	seeds, err := seedspec.ParseAll(profile.Seeds)
	if err != nil {
		return nil, err
	}

	perf := o.cfg.GetProfilePerformance(profileName)
	fetcher := fetch.New(o.db, fetch.Options{
		Dialect:         dialect.Postgres,
		BatchSize:       perf.BatchSize,
		StreamEnabled:   perf.StreamEnabled,
		StreamThreshold: perf.StreamThreshold,
		ChunkSize:       perf.ChunkSize,
		Logger:          log,
	})

	depth := profile.Depth
	if depth <= 0 {
		depth = 3
	}
	direction := schema.Direction(profile.Direction)
	if direction == "" {
		direction = schema.DirectionBoth
	}
	exclude := make(map[string]bool, len(profile.ExcludeTables))
	for _, t := range profile.ExcludeTables {
		exclude[t] = true
	}

	engine := traverse.New(graph, fetcher, traverse.Options{
		MaxDepth:      depth,
		Direction:     direction,
		ExcludeTables: exclude,
	}, log)

	collected, err := engine.Run(ctx, seeds)
	if err != nil {
		return nil, err
	}
	log.Infof("collected %d row(s) across %d table(s)", collected.Count(), len(collected.Tables()))

	plan, err := o.sortTables(collected, graph)
	if err != nil {
		return nil, err
	}

	shouldValidate := profile.Validate == nil || *profile.Validate
	var violations []xerrors.ValidationViolation
	if shouldValidate {
		violations = validate.Run(graph, collected, plan)
		failOnError := profile.FailOnValidateError != nil && *profile.FailOnValidateError
		if len(violations) > 0 {
			if failOnError {
				return nil, &xerrors.ValidationError{Violations: violations}
			}
			log.Warnf("validation found %d referential-integrity issue(s)", len(violations))
		}
	}

	if err := o.emit(profileName, graph, collected, plan, anonCfg); err != nil {
		return nil, err
	}

	return &Result{
		ProfileName:      profileName,
		TableRowCounts:   rowCounts(collected),
		DeferredEdges:    len(plan.Deferred),
		ValidationIssues: violations,
	}, nil
}

func (o *Orchestrator) buildGraph(ctx context.Context, profile config.ProfileConfig) (*schema.Graph, error) {
	ins, err := introspect.New(o.db, o.cfg.Source.Schema, "postgres")
	if err != nil {
		return nil, err
	}
	return ins.Build(ctx, profile.VirtualForeignKeys)
}

func (o *Orchestrator) sortTables(collected *traverse.Collected, graph *schema.Graph) (*topo.Plan, error) {
	tables := collected.Tables()
	tableSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableSet[t] = true
	}
	edges := graph.InducedSubgraph(tableSet)
	rowCount := func(table string) int { return len(collected.RowKeys(table)) }
	return topo.Sort(tables, edges, rowCount)
}

func (o *Orchestrator) emit(profileName string, graph *schema.Graph, collected *traverse.Collected, plan *topo.Plan, anonCfg config.AnonymizeConfig) error {
	outCfg := o.cfg.GetProfileOutput(profileName)

	var anonymizer *anonymize.Anonymizer
	if anonCfg.Enabled {
		seed := anonCfg.Seed
		if seed == "" {
			// No configured seed: use a fresh random one for this run.
			buf := make([]byte, 16)
			if _, err := rand.Read(buf); err != nil {
				return fmt.Errorf("generating anonymization seed: %w", err)
			}
			seed = hex.EncodeToString(buf)
		}
		anonymizer = anonymize.New(seed, anonymize.GofakeitFunc, graph.IsFKColumn)
	}

	emitter := emit.New(outCfg, anonymizer)
	return emitter.Emit(emit.Source{Collected: collected, Graph: graph, Plan: plan}, outCfg.OutFile)
}

func rowCounts(collected *traverse.Collected) map[string]int {
	out := make(map[string]int)
	for _, t := range collected.Tables() {
		out[t] = len(collected.RowKeys(t))
	}
	return out
}
