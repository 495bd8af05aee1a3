package converter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"toxref_brick/config"
	"toxref_brick/database"
	"toxref_brick/source"
)

// State is a step of a conversion run.
type State int

const (
	StateInit State = iota
	StateConnectSource
	StateConnectDestination
	StateConvertBaseTables
	StateConvertViews
	StateCloseAll
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:               "Init",
	StateConnectSource:      "ConnectSource",
	StateConnectDestination: "ConnectDestination",
	StateConvertBaseTables:  "ConvertBaseTables",
	StateConvertViews:       "ConvertViews",
	StateCloseAll:           "CloseAll",
	StateDone:               "Done",
	StateFailed:             "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SourceOpener connects to the source database.
type SourceOpener func(ctx context.Context, cfg config.SourceConfig) (source.Source, error)

// DestinationOpener opens the destination SQLite file.
type DestinationOpener func(path string) (*database.DB, error)

// OpenSource connects with the configured database/sql driver.
func OpenSource(ctx context.Context, cfg config.SourceConfig) (source.Source, error) {
	return source.Open(ctx, cfg.Driver, cfg.GetConnectionString())
}

// Orchestrator runs a full conversion: base tables first, then views.
type Orchestrator struct {
	cfg        config.Config
	logger     *zap.SugaredLogger
	openSource SourceOpener
	openDest   DestinationOpener
	runID      string

	state State
	src   source.Source
	dst   *database.DB
}

// NewOrchestrator creates an orchestrator. Nil openers fall back to OpenSource
// and database.Open.
func NewOrchestrator(cfg config.Config, logger *zap.SugaredLogger, openSource SourceOpener, openDest DestinationOpener) *Orchestrator {
	if openSource == nil {
		openSource = OpenSource
	}
	if openDest == nil {
		openDest = database.Open
	}
	runID := uuid.NewString()
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger.With("run_id", runID),
		openSource: openSource,
		openDest:   openDest,
		runID:      runID,
		state:      StateInit,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(next State) {
	o.logger.Infof("state %s -> %s", o.state, next)
	o.state = next
}

func (o *Orchestrator) options() Options {
	return Options{
		Schema:                   o.cfg.Convert.SchemaName,
		BatchSize:                o.cfg.Convert.BatchSize,
		IncludeMaterializedViews: o.cfg.Convert.IncludeMaterializedViews,
		Tables:                   o.cfg.Convert.Tables,
		Exclude:                  o.cfg.Convert.Exclude,
	}
}

// Run converts the configured schema. On failure every open connection is
// closed and the error is returned along with the partial report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: o.runID, Output: o.cfg.Convert.OutputPath}

	err := o.run(ctx, report)
	report.Elapsed = time.Since(start)
	if err != nil {
		o.transition(StateFailed)
		if cerr := o.closeAll(); cerr != nil {
			o.logger.Warnf("close after failure: %v", cerr)
		}
		o.logger.Errorf("conversion failed: %v", err)
		report.Err = err
		return report, err
	}
	o.logger.Infof("conversion finished in %s", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, report *Report) error {
	if o.state != StateInit {
		return fmt.Errorf("orchestrator already ran (state %s)", o.state)
	}

	o.transition(StateConnectSource)
	src, err := o.openSource(ctx, o.cfg.Source)
	if err != nil {
		return fmt.Errorf("connect source: %w", err)
	}
	o.src = src

	o.transition(StateConnectDestination)
	if o.cfg.Convert.Backup {
		if _, err := database.ResetOutput(o.cfg.Convert.OutputPath, o.cfg.Convert.MaxBackups, o.logger); err != nil {
			return fmt.Errorf("reset output: %w", err)
		}
	}
	dst, err := o.openDest(o.cfg.Convert.OutputPath)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	o.dst = dst

	opts := o.options()

	o.transition(StateConvertBaseTables)
	sums, err := ConvertTables(ctx, o.src, o.dst, opts, o.logger)
	report.Summaries = append(report.Summaries, sums...)
	if err != nil {
		return fmt.Errorf("convert base tables: %w", err)
	}

	o.transition(StateConvertViews)
	sums, err = ConvertViews(ctx, o.src, o.dst, opts, o.logger)
	report.Summaries = append(report.Summaries, sums...)
	if err != nil {
		return fmt.Errorf("convert views: %w", err)
	}

	o.transition(StateCloseAll)
	if err := o.closeAll(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	o.transition(StateDone)
	return nil
}

// closeAll closes whichever connections are open. It may be called repeatedly.
func (o *Orchestrator) closeAll() error {
	var errs []error
	if o.src != nil {
		if err := o.src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source: %w", err))
		}
		o.src = nil
	}
	if o.dst != nil {
		if err := o.dst.Close(); err != nil {
			errs = append(errs, fmt.Errorf("destination: %w", err))
		}
		o.dst = nil
	}
	return errors.Join(errs...)
}
