package msg_test

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qobs-build/qgn/internal/errs"
	"github.com/qobs-build/qgn/internal/msg"
)

func captureDiagnostic(t *testing.T, err error) string {
	t.Helper()
	r, w, pipeErr := os.Pipe()
	require.NoError(t, pipeErr)

	old := os.Stdout
	os.Stdout = w
	msg.Diagnostic(err)
	os.Stdout = old
	w.Close()

	out, readErr := io.ReadAll(r)
	require.NoError(t, readErr)
	return string(out)
}

func TestDiagnosticPlainError(t *testing.T) {
	out := captureDiagnostic(t, errors.New("boom"))
	assert.Contains(t, out, "boom")
}

func TestDiagnosticLocatedCoreError(t *testing.T) {
	e := errs.New(errs.ParseError, errs.Location{File: "BUILD.qgn.toml", Line: 3, Col: 1}, "unexpected token")
	out := captureDiagnostic(t, e)
	assert.Contains(t, out, "BUILD.qgn.toml:3:1")
	assert.Contains(t, out, "unexpected token")
}

func TestDiagnosticWrappedCoreError(t *testing.T) {
	e := errs.Wrap(errs.LoaderFailure, errs.Location{}, errors.New("permission denied"), "opening file")
	out := captureDiagnostic(t, e)
	assert.Contains(t, out, "opening file")
	assert.Contains(t, out, "permission denied")
}

func TestDiagnosticMultiError(t *testing.T) {
	var c errs.Collector
	c.Add(errs.New(errs.ResolveError, errs.Location{}, "first"))
	c.Add(errs.New(errs.DuplicateOutput, errs.Location{}, "second"))

	out := captureDiagnostic(t, c.Err())
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}
