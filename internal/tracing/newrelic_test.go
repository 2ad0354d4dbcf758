package tracing

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/auctionhouse/config"
)

func TestNewTracerWithoutLicenseKeyIsDisabled(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{})

	require.NoError(t, err)
	require.NotNil(t, tracer)

	// Every method is a safe no-op when disabled
	txn := tracer.StartTransaction("test")
	require.Nil(t, txn)
	tracer.EndTransaction(txn)
	tracer.RecordError(txn, errors.New("recorded against a nil transaction"))
}

func TestNewTracerInitFailureStillReturnsUsableTracer(t *testing.T) {
	// A malformed license key fails agent initialization; workers log the
	// error and continue, so the returned tracer must never be nil
	tracer, err := NewTracer(config.TracingConfig{
		LicenseKey: "not-a-valid-key",
		AppName:    "test",
	})

	require.Error(t, err)
	require.NotNil(t, tracer)

	txn := tracer.StartTransaction("test")
	require.Nil(t, txn)
	tracer.EndTransaction(txn)
	tracer.RecordError(txn, errors.New("recorded against a nil transaction"))
}
