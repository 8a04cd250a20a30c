package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/orderworker/internal/domain/model"
)

func TestParseEnqueueFlags(t *testing.T) {
	opts, err := parseEnqueueFlags([]string{"-task", "invoice_generate", "-order-id", "9", "-count", "3"})
	require.NoError(t, err)
	assert.Equal(t, "invoice_generate", opts.Task)
	assert.Equal(t, int64(9), opts.OrderID)
	assert.Equal(t, 3, opts.Count)
	assert.Equal(t, 3, opts.MaxAttempts)
}

func TestParseEnqueueFlagsRequiresOrderID(t *testing.T) {
	_, err := parseEnqueueFlags([]string{"-task", "order_receipt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--order-id")
}

func TestBuildEnvelopeOrderReceipt(t *testing.T) {
	env, err := buildEnvelope(enqueueOptions{
		Task:        "order_receipt",
		OrderID:     7,
		UserID:      "u-9",
		MaxAttempts: 5,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.NotEmpty(t, env.TraceID)
	assert.Equal(t, model.JobTypeOrderReceipt, env.Task)
	assert.Equal(t, 0, env.Attempt)
	assert.Equal(t, 5, env.MaxAttempts)

	var args model.OrderReceiptArgs
	require.NoError(t, json.Unmarshal(env.Args, &args))
	assert.Equal(t, int64(7), args.OrderID)
	assert.Equal(t, "u-9", args.UserID)
}

func TestBuildEnvelopeRejectsUnknownTask(t *testing.T) {
	_, err := buildEnvelope(enqueueOptions{Task: "browser", OrderID: 1})
	require.Error(t, err)
}

func TestParseMigrateFlagsRejectsZeroTimeout(t *testing.T) {
	_, err := parseMigrateFlags("migrate", []string{"-timeout", "0s"})
	require.Error(t, err)
}

func TestIsLikelyRemoteHost(t *testing.T) {
	assert.False(t, isLikelyRemoteHost("localhost"))
	assert.False(t, isLikelyRemoteHost("127.0.0.1"))
	assert.False(t, isLikelyRemoteHost("db.local"))
	assert.True(t, isLikelyRemoteHost("db.prod.example.com"))
	assert.True(t, isLikelyRemoteHost("10.1.2.3"))
}
