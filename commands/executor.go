package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/ptsim/diag"
	"github.com/alphabill-org/ptsim/logger"
	"github.com/alphabill-org/ptsim/observability"
	"github.com/alphabill-org/ptsim/vmm"
)

// Printer is the console the command output is written to.
type Printer interface {
	Println(a ...any)
	Print(a ...any)
}

/*
Executor runs parsed commands against the machine, in order. Failure of a
command is reported to the console and execution continues with the next
command.
*/
type Executor struct {
	m   *vmm.Machine
	out Printer

	log    *slog.Logger
	tracer trace.Tracer
	mExec  metric.Int64Counter
}

func NewExecutor(m *vmm.Machine, out Printer, obs observability.Observability) (*Executor, error) {
	if m == nil {
		return nil, errors.New("machine is nil")
	}
	if out == nil {
		return nil, errors.New("output printer is nil")
	}
	e := &Executor{
		m:      m,
		out:    out,
		log:    obs.Logger().With(logger.Module("commands")),
		tracer: obs.Tracer("commands"),
	}

	var err error
	if e.mExec, err = obs.Meter("commands").Int64Counter("exec",
		metric.WithDescription("Number of executed commands, by command and status."),
		metric.WithUnit("{command}"),
	); err != nil {
		return nil, fmt.Errorf("creating command counter: %w", err)
	}
	return e, nil
}

/*
Run executes the commands. Only cancellation of the context stops the run
early, errors of the individual commands are printed.
*/
func (e *Executor) Run(ctx context.Context, cmds []Command) error {
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.exec(ctx, cmd); err != nil {
			e.report(ctx, cmd, err)
		}
	}
	return nil
}

func (e *Executor) report(ctx context.Context, cmd Command, err error) {
	var ae *vmm.AllocationError
	if errors.As(err, &ae) {
		e.out.Println(ae.Error())
	} else {
		e.out.Println(fmt.Sprintf("%s: %v", cmd, err))
	}
	e.log.DebugContext(ctx, fmt.Sprintf("command %q failed", cmd), logger.Error(err))
}

func (e *Executor) exec(ctx context.Context, cmd Command) (rErr error) {
	ctx, span := e.tracer.Start(ctx, "Executor."+cmd.Name, trace.WithAttributes(observability.Command(cmd.Name)))
	defer func() {
		e.mExec.Add(ctx, 1, metric.WithAttributes(observability.Command(cmd.Name), observability.ErrStatus(rErr)))
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	argNames, ok := arguments[cmd.Name]
	if !ok {
		return fmt.Errorf("unsupported command %q", cmd.Name)
	}
	if len(cmd.Args) != len(argNames) {
		return fmt.Errorf("%w: expected %d arguments (%s), got %d", ErrMissingArgument, len(argNames), strings.Join(argNames, ", "), len(cmd.Args))
	}

	args := cmd.Args
	switch cmd.Name {
	case CreateProcess:
		return e.m.CreateProcess(ctx, args[0], args[1])
	case FreeMap:
		sb := &strings.Builder{}
		if err := diag.FreeMap(sb, e.m.Memory().Bitmap()); err != nil {
			return err
		}
		e.out.Print(sb.String())
	case PageTable:
		mappings, err := e.m.Mappings(args[0])
		if err != nil {
			return err
		}
		sb := &strings.Builder{}
		if err := diag.PageTable(sb, args[0], mappings); err != nil {
			return err
		}
		e.out.Print(sb.String())
	case KillProcess:
		return e.m.KillProcess(ctx, args[0])
	case StoreByte:
		acc, err := e.m.Store(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		e.out.Println(acc)
	case LoadByte:
		acc, err := e.m.Load(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		e.out.Println(acc)
	}
	return nil
}
