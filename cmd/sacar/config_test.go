package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacarhq/sacar/pkg/config"
)

func TestDefineEverything(t *testing.T) {
	defer viper.Reset()
	flags := pflag.NewFlagSet("testflags", pflag.ContinueOnError)
	defineConfigFlags(flags, func(err error) {
		t.Error(err)
	})
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "SACAR_CONSUL_HOST", envName("consul-host"))
	assert.Equal(t, "SACAR_SLAVE_PREPARE_TIMEOUT", envName("slave-prepare-timeout"))
}

func setenv(t *testing.T, key, value string) {
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadConfigLayers(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setenv(t, "SACAR_CONSUL_HOST", "consul.internal:8500")
	setenv(t, "CONSUL_HTTP_TOKEN", "acl-token")
	setenv(t, "SACAR_GITHUB_APP_ID", "1234")

	dir := t.TempDir()
	path := filepath.Join(dir, "sacar.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("deployBranch: release-*\nworkers: 8\nconsulHost: from-file:8500\n"), 0644))

	flags := pflag.NewFlagSet("testflags", pflag.ContinueOnError)
	defineConfigFlags(flags, func(err error) { t.Error(err) })
	require.NoError(t, flags.Parse([]string{"--bind", ":8000", "--bind", ":8001", "--watch-wait", "3s", "--workers", "2"}))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{":8000", ":8001"}, cfg.Bind)
	assert.Equal(t, 3*time.Second, cfg.WatchWait)
	assert.Equal(t, 5*time.Minute, cfg.PrepareTimeout)
	assert.Equal(t, "release-*", cfg.DeployBranch)
	// flags set on the command line beat the file
	assert.Equal(t, 2, cfg.Workers)
	// and the environment beats the file
	assert.Equal(t, "consul.internal:8500", cfg.ConsulHost)
	assert.Equal(t, "acl-token", cfg.ConsulHTTPToken)
	assert.Equal(t, int64(1234), cfg.GitHubAppID)
	assert.Equal(t, config.StoreConsul, cfg.StoreBackend)
	assert.Equal(t, "Prepare hosts", cfg.GitHubCheckRunName)
}

func TestLoadConfigMissingFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
