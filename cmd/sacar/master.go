package main

import (
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/sacarhq/sacar/pkg/auth"
	"github.com/sacarhq/sacar/pkg/checks"
	"github.com/sacarhq/sacar/pkg/config"
	"github.com/sacarhq/sacar/pkg/http/client"
	"github.com/sacarhq/sacar/pkg/http/master"
	"github.com/sacarhq/sacar/pkg/orchestrator"
	"github.com/sacarhq/sacar/pkg/rollout"
	"github.com/sacarhq/sacar/pkg/store"
)

func (d *daemon) master(cfg config.Config, storeClient *store.Client) (http.Handler, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	key, err := auth.LoadGitHubAppKey(cfg.GitHubKeyPath)
	if err != nil {
		return nil, err
	}
	minter, err := auth.NewGitHubAppMinter(cfg.GitHubAppID, key, cfg.GitHubAPIURL, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "configuring GitHub app")
	}
	api, err := checks.NewGitHub(auth.NewCache(minter, nil), cfg.GitHubAPIURL, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "configuring GitHub client")
	}

	orch := orchestrator.New(orchestrator.Config{
		Repository:       rollout.NewRepository(storeClient),
		Reporter:         checks.NewReporter(api, cfg.GitHubCheckRunName, nil),
		Notifier:         client.New(httpClient),
		DeployBranch:     cfg.DeployBranch,
		Environment:      cfg.Environment,
		ServiceName:      cfg.ServiceName,
		SlaveTag:         cfg.SlaveTag,
		Timeout:          cfg.PrepareTimeout,
		WatchWait:        cfg.WatchWait,
		WatchMinInterval: cfg.WatchMinInterval,
		Logger:           log.With(d.logger, "component", "orchestrator"),
	})
	return master.NewHandler(d.ctx, orch, d.worker, []byte(cfg.GitHubWebhookSecret), log.With(d.logger, "component", "webhooks"), master.NewRouter()), nil
}
