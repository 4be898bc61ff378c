package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sacarhq/sacar/pkg/auth"
	"github.com/sacarhq/sacar/pkg/config"
)

// envName is the environment variable that can stand in for a flag;
// e.g., SACAR_CONSUL_HOST for --consul-host.
func envName(flagName string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.Replace(flagName, "-", "_", -1))
}

// defineConfigFlags defines the flags that can also be set in
// a config file or the environment. These need special treatment,
// because some care must be taken to match them ("bind") with config
// file field names.
func defineConfigFlags(fs *pflag.FlagSet, bail func(error)) {

	bind := func(fieldName, flagName string, extraEnv ...string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		// this parallels the logic in
		// github.com/mitchellh/mapstructure, except that we want to
		// bail if a field is mentioned that is marked ignore
		mappedName := field.Name
		if namePart := strings.Split(field.Tag.Get("mapstructure"), ",")[0]; namePart != "" {
			if namePart == "-" {
				return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
			}
			mappedName = namePart
		}
		if err := viper.BindPFlag(mappedName, fs.Lookup(flagName)); err != nil {
			return err
		}
		return viper.BindEnv(append([]string{mappedName, envName(flagName)}, extraEnv...)...)
	}

	bindOrBail := func(fieldName, flagName string, extraEnv ...string) {
		if err := bind(fieldName, flagName, extraEnv...); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string, extraEnv ...string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName, extraEnv...)
	}

	defineStringSlice := func(fieldName, flagName string, def []string, desc string) {
		fs.StringSlice(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineBool := func(fieldName, flagName string, def bool, desc string) {
		fs.Bool(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, def int, desc string) {
		fs.Int(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt64 := func(fieldName, flagName string, def int64, desc string) {
		fs.Int64(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	hostname, _ := os.Hostname()

	defineString("LogFormat", "log-format", "fmt", "change the log format (one of {fmt,json})")
	defineStringSlice("Bind", "bind", nil, "address:port to serve the API and /metrics on; may be repeated")

	defineString("Hostname", "hostname", hostname, "name this host reports its status under")
	defineString("Environment", "environment", "production", "deployment environment this master acts on")
	defineString("DeployBranch", "deploy-branch", "master", "only commits on branches matching this glob are prepared")
	defineString("VersionsDirectory", "versions-directory", "", "directory prepared versions are kept in, one subdirectory per commit")
	defineDuration("PrepareTimeout", "slave-prepare-timeout", 5*time.Minute, "how long slaves get to prepare a commit before the rollout fails")
	defineDuration("WatchWait", "watch-wait", 10*time.Second, "how long a single blocking query on slave statuses may wait")
	defineDuration("WatchMinInterval", "watch-min-interval", time.Second, "minimum time between blocking queries on slave statuses")
	defineStringSlice("Runtimes", "runtime", nil, fmt.Sprintf("python runtimes as version-constraint=interpreter; may be repeated (default %s)", strings.Join(config.RuntimeDescriptors(config.DefaultRuntimes), ",")))
	defineInt("Workers", "workers", 4, "number of background jobs run at once; rollouts being waited on do not count against this")
	defineInt("JobStatusCache", "job-status-cache-size", 100, "number of finished jobs to remember the status of")

	// GitHub app
	defineInt64("GitHubAppID", "github-app-id", 0, "id of the GitHub app sacar runs as")
	defineString("GitHubKeyPath", "github-key-path", "", "path to the GitHub app's private key, in PEM format")
	defineString("GitHubWebhookSecret", "github-webhook-secret", "", "secret GitHub signs webhook deliveries with")
	defineString("GitHubCheckRunName", "github-check-run-name", "Prepare hosts", "name of the check run reporting rollouts")
	defineString("GitHubAPIURL", "github-api-url", auth.DefaultGitHubAPIURL, "base URL of the GitHub API")

	// artifact storage
	defineString("BlobBackend", "blob-backend", config.BlobGCS, fmt.Sprintf("where artifacts are downloaded from (one of {%s,%s})", config.BlobGCS, config.BlobS3))
	defineString("GCPBucket", "gcp-bucket", "", "GCS bucket holding artifacts")
	defineString("GCPKeyPath", "gcp-key-path", "", "path to a GCP service account key file with read access to the bucket")
	defineString("S3Bucket", "s3-bucket", "", "S3 bucket holding artifacts")
	defineString("S3Region", "s3-region", "", "AWS region of the S3 bucket; defaults to the SDK's own discovery")

	// coordination store
	defineString("StoreBackend", "store-backend", config.StoreConsul, fmt.Sprintf("coordination store (one of {%s,%s})", config.StoreConsul, config.StoreEtcd))
	defineString("ConsulHost", "consul-host", "127.0.0.1:8500", "address of the Consul agent")
	defineString("ConsulHTTPToken", "consul-http-token", "", "ACL token for Consul", "CONSUL_HTTP_TOKEN")
	defineString("ConsulKeyPrefix", "consul-key-prefix", "sacar", "KV prefix rollout state is kept under in Consul")
	defineStringSlice("EtcdEndpoints", "etcd-endpoints", nil, "etcd endpoints; may be repeated")
	defineString("EtcdPrefix", "etcd-prefix", "sacar", "key prefix rollout state is kept under in etcd")
	defineString("ServiceName", "service-name", "sacar", "service slaves are registered as")
	defineString("SlaveTag", "slave-tag", "slave", "tag marking slave instances of the service")
	defineBool("Register", "register", false, "register this slave in the store on startup, and deregister on shutdown")
	defineString("AdvertiseAddress", "advertise-address", "", "address:port the master should reach this slave on, when registering")
}

// loadConfig reads the config file, if there is one, and merges it
// with the flags and environment.
func loadConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(config.ConfigName)
		viper.SetConfigType(config.ConfigType)
		viper.AddConfigPath("/etc/sacar")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return cfg, errors.Wrap(err, "reading config file")
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decoding config")
	}
	return cfg, nil
}
