package backup

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// DumpPostgres invokes the external pg_dump collaborator against
// connectionURI, terminating it if it exceeds timeout (§5 "external process
// invocations... carry a configurable timeout and are terminated if
// exceeded").
func DumpPostgres(ctx context.Context, pgDumpPath, connectionURI string, timeout time.Duration) ([]byte, error) {
	if pgDumpPath == "" {
		pgDumpPath = "pg_dump"
	}

	dumpCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(dumpCtx, pgDumpPath, connectionURI)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if dumpCtx.Err() != nil {
			return nil, fmt.Errorf("%w: pg_dump exceeded %s timeout", ErrDumpFailed, timeout)
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrDumpFailed, err, stderr.String())
	}

	return stdout.Bytes(), nil
}
