// config is the package containing configuration for sacar, shared by
// the master and slave roles.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/imdario/mergo"
)

const (
	ConfigName = "sacar"
	ConfigType = "yaml"
	EnvPrefix  = "SACAR"

	RoleMaster = "master"
	RoleSlave  = "slave"

	BlobGCS = "gcs"
	BlobS3  = "s3"

	StoreConsul = "consul"
	StoreEtcd   = "etcd"
)

// DefaultRuntimes maps a version constraint to the interpreter used
// to create virtualenvs for artifacts declaring a matching version.
var DefaultRuntimes = map[string]string{
	"~3.7": "python3.7",
}

type Config struct {
	LogFormat string   `mapstructure:"logFormat"`
	Bind      []string `mapstructure:"bind"`

	Hostname          string        `mapstructure:"hostname"`
	Environment       string        `mapstructure:"environment"`
	DeployBranch      string        `mapstructure:"deployBranch"`
	VersionsDirectory string        `mapstructure:"versionsDirectory"`
	PrepareTimeout    time.Duration `mapstructure:"slavePrepareTimeout"`
	WatchWait         time.Duration `mapstructure:"watchWait"`
	WatchMinInterval  time.Duration `mapstructure:"watchMinInterval"`
	Runtimes          []string      `mapstructure:"runtimes"`
	Workers           int           `mapstructure:"workers"`
	JobStatusCache    int           `mapstructure:"jobStatusCacheSize"`

	GitHubAppID         int64  `mapstructure:"githubAppId"`
	GitHubKeyPath       string `mapstructure:"githubKeyPath"`
	GitHubWebhookSecret string `mapstructure:"githubWebhookSecret"`
	GitHubCheckRunName  string `mapstructure:"githubCheckRunName"`
	GitHubAPIURL        string `mapstructure:"githubApiUrl"`

	BlobBackend string `mapstructure:"blobBackend"`
	GCPBucket   string `mapstructure:"gcpBucket"`
	GCPKeyPath  string `mapstructure:"gcpKeyPath"`
	S3Bucket    string `mapstructure:"s3Bucket"`
	S3Region    string `mapstructure:"s3Region"`

	StoreBackend     string   `mapstructure:"storeBackend"`
	ConsulHost       string   `mapstructure:"consulHost"`
	ConsulHTTPToken  string   `mapstructure:"consulHttpToken"`
	ConsulKeyPrefix  string   `mapstructure:"consulKeyPrefix"`
	EtcdEndpoints    []string `mapstructure:"etcdEndpoints"`
	EtcdPrefix       string   `mapstructure:"etcdPrefix"`
	ServiceName      string   `mapstructure:"serviceName"`
	SlaveTag         string   `mapstructure:"slaveTag"`
	Register         bool     `mapstructure:"register"`
	AdvertiseAddress string   `mapstructure:"advertiseAddress"`
}

// IsValid checks that everything the given role needs is present.
func (c Config) IsValid(role string) error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	if len(c.Bind) == 0 {
		missing = append(missing, "bind")
	}
	switch c.StoreBackend {
	case StoreConsul:
		require("consul-host", c.ConsulHost)
	case StoreEtcd:
		if len(c.EtcdEndpoints) == 0 {
			missing = append(missing, "etcd-endpoints")
		}
	default:
		return fmt.Errorf("unknown store backend %q (one of {%s,%s})", c.StoreBackend, StoreConsul, StoreEtcd)
	}

	switch role {
	case RoleMaster:
		if c.GitHubAppID == 0 {
			missing = append(missing, "github-app-id")
		}
		require("github-key-path", c.GitHubKeyPath)
		require("github-webhook-secret", c.GitHubWebhookSecret)
		require("deploy-branch", c.DeployBranch)
	case RoleSlave:
		require("hostname", c.Hostname)
		require("versions-directory", c.VersionsDirectory)
		switch c.BlobBackend {
		case BlobGCS:
			require("gcp-bucket", c.GCPBucket)
			require("gcp-key-path", c.GCPKeyPath)
		case BlobS3:
			require("s3-bucket", c.S3Bucket)
		default:
			return fmt.Errorf("unknown blob backend %q (one of {%s,%s})", c.BlobBackend, BlobGCS, BlobS3)
		}
		if c.Register && c.AdvertiseAddress == "" {
			missing = append(missing, "advertise-address")
		}
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration for %s: %s", role, strings.Join(missing, ", "))
	}
	return nil
}

// RuntimeMap parses the `constraint=interpreter` descriptors and fills
// in any constraint not mentioned from DefaultRuntimes.
func (c Config) RuntimeMap() (map[string]string, error) {
	runtimes := map[string]string{}
	for _, desc := range c.Runtimes {
		parts := strings.SplitN(desc, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("runtime %q is not of the form version=interpreter", desc)
		}
		runtimes[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := mergo.Merge(&runtimes, DefaultRuntimes); err != nil {
		return nil, err
	}
	return runtimes, nil
}

// RuntimeDescriptors renders a runtime map back into descriptors, in
// a stable order.
func RuntimeDescriptors(runtimes map[string]string) []string {
	var out []string
	for k, v := range runtimes {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
