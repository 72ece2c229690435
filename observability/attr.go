package observability

import (
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const ProcessKey attribute.Key = "proc"
const PurposeKey attribute.Key = "purpose"
const CommandKey attribute.Key = "cmd"

/*
Observability is the set of observability providers the simulator components
need. Components take it as constructor argument and create their own named
meters and tracers.
*/
type Observability interface {
	Meter(name string, opts ...metric.MeterOption) metric.Meter
	Tracer(name string, options ...trace.TracerOption) trace.Tracer
	Logger() *slog.Logger
}

func Process(pid int) attribute.KeyValue {
	return ProcessKey.Int(pid)
}

func Purpose(purpose string) attribute.KeyValue {
	return PurposeKey.String(purpose)
}

func Command(name string) attribute.KeyValue {
	return CommandKey.String(name)
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	status := "ok"
	if err != nil {
		status = "err"
	}
	return attribute.String("status", status)
}
