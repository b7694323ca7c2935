package logging

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	})
	return &buf
}

func TestLoggerUsesRequestID(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "rid-1")
	New(ctx).Infof("create_project", "project_id=%s", "p1")

	assert.Equal(t, "[info] request_id=rid-1 operation=create_project project_id=p1\n", buf.String())
}

func TestLoggerDefaultsToUnknown(t *testing.T) {
	buf := captureLog(t)

	New(context.Background()).Error("save_artifact", errors.New("boom"))

	assert.Contains(t, buf.String(), "request_id=unknown")
	assert.Contains(t, buf.String(), "error=boom")
}
