package commands

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSystemStatusPrintsCounts(t *testing.T) {
	f := newTestFacade(t)
	var out bytes.Buffer
	err := RunSystemStatus(context.Background(), f, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "keys_due_for_rotation=")
}

func TestRunComprehensiveAuditPrintsSweepAndReport(t *testing.T) {
	f := newTestFacade(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	var out bytes.Buffer
	err := RunComprehensiveAudit(ctx, f, &out, start, end)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "sweep: total=")
	assert.Contains(t, out.String(), "report: total_events=")
}
