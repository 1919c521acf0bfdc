package devops

// apiBody is the envelope every DevOps API response is wrapped in.
type apiBody[T any] struct {
	Status  string  `json:"status"`
	Data    *T      `json:"data"`
	Message *string `json:"message"`
	Code    *int    `json:"code"`
	TraceID *string `json:"traceId"`
}

// PageRecords is one page of a paginated result.
type PageRecords[T any] struct {
	Count      int64 `json:"count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
	Records    []T   `json:"records"`
}

// PipelineInfo describes one pipeline of a DevOps project.
type PipelineInfo struct {
	ProjectID                            string `json:"projectId"`
	PipelineID                           string `json:"pipelineId"`
	PipelineName                         string `json:"pipelineName"`
	PipelineDesc                         string `json:"pipelineDesc"`
	TaskCount                            int    `json:"taskCount"`
	BuildCount                           int    `json:"buildCount"`
	Lock                                 bool   `json:"lock"`
	CanManualStartup                     bool   `json:"canManualStartup"`
	LatestBuildStartTime                 int64  `json:"latestBuildStartTime"`
	LatestBuildEndTime                   int64  `json:"latestBuildEndTime"`
	LatestBuildNum                       int    `json:"latestBuildNum"`
	LatestBuildEstimatedExecutionSeconds int    `json:"latestBuildEstimatedExecutionSeconds"`
	DeploymentTime                       int64  `json:"deploymentTime"`
	CreateTime                           int64  `json:"createTime"`
	UpdateTime                           int64  `json:"updateTime"`
	PipelineVersion                      int    `json:"pipelineVersion"`
	CurrentTimestamp                     int64  `json:"currentTimestamp"`
	RunningBuildCount                    int    `json:"runningBuildCount"`
	HasPermission                        bool   `json:"hasPermission"`
	HasCollect                           bool   `json:"hasCollect"`
	LatestBuildUserID                    string `json:"latestBuildUserId"`
	InstanceFromTemplate                 bool   `json:"instanceFromTemplate"`
	TemplateID                           string `json:"templateId"`
	VersionName                          string `json:"versionName"`
	Version                              int    `json:"version"`
	Updater                              string `json:"updater"`
	Creator                              string `json:"creator"`
	LastBuildTotalCount                  int    `json:"lastBuildTotalCount"`
	LastBuildFinishCount                 int    `json:"lastBuildFinishCount"`
	Delete                               bool   `json:"delete"`
}
