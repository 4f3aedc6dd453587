package phantom

// launchRequest is the body of POST /agents/launch.
type launchRequest struct {
	ID       string         `json:"id"`
	Argument launchArgument `json:"argument"`
}

type launchArgument struct {
	Searches      string `json:"searches"`
	SessionCookie string `json:"sessionCookie"`
}

type launchResponse struct {
	ContainerID string `json:"containerId"`
}

type agentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type containerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}
