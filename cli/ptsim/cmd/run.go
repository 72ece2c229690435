package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/ptsim/commands"
	"github.com/alphabill-org/ptsim/keyvaluedb/boltdb"
	"github.com/alphabill-org/ptsim/logger"
	"github.com/alphabill-org/ptsim/memory"
	"github.com/alphabill-org/ptsim/snapshot"
	"github.com/alphabill-org/ptsim/vmm"
)

const (
	flagNamePageSize      = "page-size"
	flagNamePageCount     = "page-count"
	flagNameStrict        = "strict"
	flagNameCheckMappings = "check-mappings"
	flagNameRollback      = "rollback"
	flagNameState         = "state"
	flagNameFile          = "file"
)

var errUsage = errors.New("usage: ptsim [flags] commands...")

type runConfiguration struct {
	Base *baseConfiguration

	PageSize      int
	PageCount     int
	Strict        bool
	CheckMappings bool
	Rollback      bool
	StateFile     string
	CommandFile   string
}

func (r *runConfiguration) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&r.PageSize, flagNamePageSize, memory.DefaultPageSize, "size of the page in bytes, must be power of two")
	cmd.Flags().IntVar(&r.PageCount, flagNamePageCount, memory.DefaultPageCount, "number of physical pages, also the number of process ids and virtual pages per process")
	cmd.Flags().BoolVar(&r.Strict, flagNameStrict, true, "fail on unknown command names instead of ignoring them")
	cmd.Flags().BoolVar(&r.CheckMappings, flagNameCheckMappings, false, "fail access to unmapped pages instead of translating them through page 0")
	cmd.Flags().BoolVar(&r.Rollback, flagNameRollback, false, "release pages of the partially created process when memory runs out")
	cmd.Flags().StringVar(&r.StateFile, flagNameState, "", "database file the memory image is loaded from and saved to, state is not persisted when not set")
	cmd.Flags().StringVarP(&r.CommandFile, flagNameFile, "f", "", "file to read commands from, they are executed before the commands given as arguments")
}

func (r *runConfiguration) tokens(args []string) ([]string, error) {
	if r.CommandFile == "" {
		return args, nil
	}
	data, err := os.ReadFile(r.CommandFile)
	if err != nil {
		return nil, fmt.Errorf("reading commands file: %w", err)
	}
	return append(strings.Fields(string(data)), args...), nil
}

func runSimulator(ctx context.Context, cfg *runConfiguration, args []string) (rErr error) {
	tokens, err := cfg.tokens(args)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return errUsage
	}

	layout, err := memory.NewLayout(cfg.PageSize, cfg.PageCount)
	if err != nil {
		return fmt.Errorf("memory configuration: %w", err)
	}

	obs := cfg.Base.observe
	log := obs.Logger()
	cmds, err := commands.Parse(log, tokens, cfg.Strict)
	if err != nil {
		return fmt.Errorf("parsing commands: %w", err)
	}

	mem := memory.New(layout)
	if cfg.StateFile != "" {
		db, err := boltdb.New(cfg.StateFile)
		if err != nil {
			return fmt.Errorf("opening state database: %w", err)
		}
		defer func() { rErr = errors.Join(rErr, db.Close()) }()

		stored, found, err := snapshot.Load(db, layout)
		if err != nil {
			return fmt.Errorf("loading memory image: %w", err)
		}
		if found {
			mem = stored
			log.DebugContext(ctx, "memory image restored from "+cfg.StateFile)
		}
		defer func() {
			if rErr == nil {
				if err := snapshot.Save(db, mem); err != nil {
					rErr = fmt.Errorf("saving memory image: %w", err)
				}
			}
		}()
	}

	m, err := vmm.New(mem, obs, vmm.WithRollback(cfg.Rollback), vmm.WithMappingChecks(cfg.CheckMappings))
	if err != nil {
		return fmt.Errorf("creating machine: %w", err)
	}
	exec, err := commands.NewExecutor(m, consoleWriter, obs)
	if err != nil {
		return fmt.Errorf("creating command executor: %w", err)
	}

	log.DebugContext(ctx, fmt.Sprintf("executing %d commands, memory %s", len(cmds), layout), logger.Data(cfg))
	return exec.Run(ctx, cmds)
}
