package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSlave() Config {
	return Config{
		Bind:              []string{":8080"},
		Hostname:          "web-1",
		VersionsDirectory: "/srv/versions",
		BlobBackend:       BlobGCS,
		GCPBucket:         "artifacts",
		GCPKeyPath:        "/etc/sacar/gcp.json",
		StoreBackend:      StoreConsul,
		ConsulHost:        "http://localhost:8500",
	}
}

func TestIsValidSlave(t *testing.T) {
	c := validSlave()
	assert.NoError(t, c.IsValid(RoleSlave))

	c.GCPBucket = ""
	err := c.IsValid(RoleSlave)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gcp-bucket")

	c = validSlave()
	c.BlobBackend = "ftp"
	assert.Error(t, c.IsValid(RoleSlave))

	c = validSlave()
	c.Register = true
	assert.Error(t, c.IsValid(RoleSlave))
	c.AdvertiseAddress = "10.0.0.1:8080"
	assert.NoError(t, c.IsValid(RoleSlave))
}

func TestIsValidMaster(t *testing.T) {
	c := Config{
		Bind:                []string{":8080"},
		StoreBackend:        StoreEtcd,
		EtcdEndpoints:       []string{"localhost:2379"},
		GitHubAppID:         1234,
		GitHubKeyPath:       "/etc/sacar/app.pem",
		GitHubWebhookSecret: "s3cret",
		DeployBranch:        "master",
	}
	assert.NoError(t, c.IsValid(RoleMaster))

	c.GitHubWebhookSecret = ""
	assert.Error(t, c.IsValid(RoleMaster))
	assert.Error(t, c.IsValid("janitor"))
}

func TestRuntimeMap(t *testing.T) {
	c := Config{Runtimes: []string{"~3.8=/opt/python3.8/bin/python", " ~3.7 = /usr/bin/python3.7"}}
	runtimes, err := c.RuntimeMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"~3.8": "/opt/python3.8/bin/python",
		"~3.7": "/usr/bin/python3.7",
	}, runtimes)

	runtimes, err = Config{}.RuntimeMap()
	require.NoError(t, err)
	assert.Equal(t, DefaultRuntimes, runtimes)

	_, err = Config{Runtimes: []string{"python3.7"}}.RuntimeMap()
	assert.Error(t, err)
}

func TestRuntimeDescriptors(t *testing.T) {
	assert.Equal(t, []string{"~3.7=python3.7", "~3.8=python3.8"},
		RuntimeDescriptors(map[string]string{"~3.8": "python3.8", "~3.7": "python3.7"}))
}
