package http

// Route names, shared by the routers, the handlers and the client.
const (
	Status    = "Status"
	JobStatus = "JobStatus"
	Metrics   = "Metrics"

	// master
	GitHubWebhook = "GitHubWebhook"
	TarballReady  = "TarballReady"

	// slave
	PrepareHost = "PrepareHost"
	DeployHost  = "DeployHost"
)
