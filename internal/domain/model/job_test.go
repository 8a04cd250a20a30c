package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTypeValid(t *testing.T) {
	tests := []struct {
		jobType JobType
		want    bool
	}{
		{JobTypeOrderReceipt, true},
		{JobTypeInvoiceGenerate, true},
		{JobType("browser"), false},
		{JobType(""), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.jobType.Valid(), "JobType(%q).Valid()", tt.jobType)
	}
}

func TestJobTypeUnmarshalText(t *testing.T) {
	var jt JobType
	require.NoError(t, jt.UnmarshalText([]byte(" Order_Receipt ")))
	assert.Equal(t, JobTypeOrderReceipt, jt)

	assert.Error(t, jt.UnmarshalText([]byte("rm_rf")))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestTaskEnvelopeValidate(t *testing.T) {
	valid := TaskEnvelope{
		ID:          "0c9e3f1a",
		Task:        JobTypeOrderReceipt,
		Args:        json.RawMessage(`{"order_id":42,"user_id":"u1"}`),
		MaxAttempts: 3,
		EnqueuedAt:  time.Now(),
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*TaskEnvelope)
	}{
		{"missing id", func(e *TaskEnvelope) { e.ID = "" }},
		{"unknown task", func(e *TaskEnvelope) { e.Task = "mystery" }},
		{"empty args", func(e *TaskEnvelope) { e.Args = nil }},
		{"negative attempt", func(e *TaskEnvelope) { e.Attempt = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := valid
			tt.mutate(&env)
			assert.Error(t, env.Validate())
		})
	}
}

func TestTaskEnvelopeExhausted(t *testing.T) {
	env := TaskEnvelope{Attempt: 1, MaxAttempts: 3}
	assert.False(t, env.Exhausted())
	env.Attempt = 2
	assert.True(t, env.Exhausted())
}

func TestInvoiceID(t *testing.T) {
	assert.Equal(t, "INV-42", InvoiceID(42))
}
