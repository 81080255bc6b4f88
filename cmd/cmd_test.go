package cmd

import (
	"bytes"
	"fmt"
	"os"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alwaysSatisfied = `{
	"format": "tree-booster/v1",
	"objective": "binary:logistic",
	"base_score": 0,
	"features": [{"name": "processing_time_days", "type": "numeric"}],
	"trees": [{"nodes": [{"is_leaf": true, "value": 2.0}]}]
}`

func writeFixture(t *testing.T, extraYAML ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, i := range []int{1, 2, 4} {
		name := fmt.Sprintf("XGBoost_ADASYN_fold%d.json", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(alwaysSatisfied), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "XGBoost_ADASYN_fold5.json"), []byte("not a model"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kategori.txt"), []byte("toys\nauto\n"), 0o600))

	cfg := fmt.Sprintf("models:\n  dir: %q\nvocabulary:\n  categories_file: %q\n",
		dir, filepath.Join(dir, "kategori.txt"))
	cfg += strings.Join(extraYAML, "")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestModelsCmd(t *testing.T) {
	cfgFile := writeFixture(t)

	stdout, stderr, err := run(t, "--config", cfgFile, "models")

	require.NoError(t, err)
	assert.Regexp(t, `XGBoost_ADASYN_fold1\.json\s+loaded`, stdout)
	assert.Regexp(t, `XGBoost_ADASYN_fold3\.json\s+failed: missing`, stdout)
	assert.Regexp(t, `XGBoost_ADASYN_fold5\.json\s+failed: .*corrupt model artifact`, stdout)
	assert.Contains(t, stdout, "3 of 5 models loaded, 2 product categories")
	assert.Contains(t, stderr, `warning: failed to load model "XGBoost_ADASYN_fold3.json"`)
}

func TestPredictCmd(t *testing.T) {
	cfgFile := writeFixture(t)

	stdout, _, err := run(t, "--config", cfgFile, "predict",
		"--processing-time-days", "2",
		"--customer-state", "Utara (Norte)",
		"--product-category", "auto",
		"--order-status", "delivered",
		"--payment-type", "boleto",
	)

	require.NoError(t, err)
	assert.Equal(t, "Prediction: Satisfied\nVotes: {1: 3}\nModels: 3\n", stdout)
}

func TestPredictCmd_InvalidRecord(t *testing.T) {
	cfgFile := writeFixture(t)

	_, _, err := run(t, "--config", cfgFile, "predict",
		"--customer-state", "Utara (Norte)",
		"--product-category", "spaceships",
		"--order-status", "delivered",
		"--payment-type", "boleto",
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `product_category_name_english: unknown value "spaceships"`)
}

func TestPredictCmd_FlagsStartFreshPerRun(t *testing.T) {
	cfgFile := writeFixture(t)

	_, _, err := run(t, "--config", cfgFile, "predict",
		"--customer-state", "Utara (Norte)",
		"--product-category", "auto",
		"--order-status", "delivered",
		"--payment-type", "boleto",
	)
	require.NoError(t, err)

	_, _, err = run(t, "--config", cfgFile, "predict",
		"--product-category", "auto",
		"--order-status", "delivered",
		"--payment-type", "boleto",
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "new_customer_state: required")
}

func TestServeCmd_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	cfgFile := writeFixture(t,
		fmt.Sprintf("http:\n  addr: %q\n", ln.Addr().String()),
		"rate_limit:\n  rps: 0\n",
	)

	_, _, err = run(t, "--config", cfgFile, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
}
