package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginrelay/internal/domain/entity"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		generateStdout = false
		generateInstall = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func relay(t *testing.T, status int, code string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req entity.GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if gotPrompt != nil {
			*gotPrompt = req.Prompt
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(entity.GenerateResponse{Code: code})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateCommand_Saves(t *testing.T) {
	var prompt string
	srv := relay(t, http.StatusOK, "<?php echo 'blue';", &prompt)
	dir := t.TempDir()

	out, err := execute(t, "", "generate", "--server", srv.URL, "--out", dir, "Change", "add", "to", "cart", "button", "to", "blue")
	require.NoError(t, err)

	assert.Equal(t, "Change add to cart button to blue", prompt)
	assert.Contains(t, out, "<?php echo 'blue';")

	data, err := os.ReadFile(filepath.Join(dir, entity.PluginFileName))
	require.NoError(t, err)
	assert.Equal(t, "<?php echo 'blue';", string(data))
}

func TestGenerateCommand_FailureSavesFallback(t *testing.T) {
	srv := relay(t, http.StatusInternalServerError, entity.FallbackCode, nil)
	dir := t.TempDir()

	out, err := execute(t, "", "generate", "--server", srv.URL, "--out", dir, "x")
	require.ErrorIs(t, err, errGenerationFailed)
	assert.Contains(t, out, entity.FallbackCode)

	data, err := os.ReadFile(filepath.Join(dir, entity.PluginFileName))
	require.NoError(t, err)
	assert.Equal(t, entity.FallbackCode, string(data))
}

func TestGenerateCommand_StdinAndStdout(t *testing.T) {
	var prompt string
	srv := relay(t, http.StatusOK, "<?php echo 1;", &prompt)
	dir := t.TempDir()

	out, err := execute(t, "Add a free shipping notice\n", "generate", "--server", srv.URL, "--out", dir, "--stdout")
	require.NoError(t, err)

	assert.Equal(t, "Add a free shipping notice", prompt)
	assert.Equal(t, "<?php echo 1;\n", out)
	assert.NoFileExists(t, filepath.Join(dir, entity.PluginFileName))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pluginrelay dev")
}

func TestGenerateCommand_Install(t *testing.T) {
	code := "<?php\n/*\nPlugin Name: Free Shipping Notice\n*/"
	srv := relay(t, http.StatusOK, code, nil)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "wp-content", "plugins"), 0o755))

	_, err := execute(t, "", "generate", "--server", srv.URL, "--out", t.TempDir(), "--install", root, "notice")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "wp-content", "plugins", "free-shipping-notice", entity.PluginFileName))
	require.NoError(t, err)
	assert.Equal(t, code, string(data))
}
