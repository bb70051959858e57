package otelhelper

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks span as failed with err.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// RecordExecution tags span with the final run status. Runs that did not succeed are marked as errors.
func RecordExecution(span trace.Span, status, errMsg string) {
	span.SetAttributes(attribute.String(ExecutionStatusKey, status))

	if status == "SUCCESS" {
		span.SetStatus(codes.Ok, "")

		return
	}

	if errMsg == "" {
		errMsg = "execution " + status
	}

	SetError(span, errors.New(errMsg))
}

// RecordNodeFailure marks a node span as failed.
func RecordNodeFailure(span trace.Span, nodeID, msg string) {
	SetError(span, errors.New(msg), attribute.String(NodeIDKey, nodeID))
}
