package dto

type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id         string      `json:"id"`
	AccountId  string      `json:"accountId"`
	EntityId   string      `json:"entityId"`
	EntityType string      `json:"entityType"`
	EventType  string      `json:"eventType"`
	Data       interface{} `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uber-trace-id"`
	AppSource   string `json:"appSource"`
	Timestamp   string `json:"timestamp"`
}

type EmailReceived struct {
	AccountID   string `json:"accountId"`
	EmailID     string `json:"emailId"`
	ThreadID    string `json:"threadId"`
	InitialSync bool   `json:"initialSync"`
}

type SyncDegraded struct {
	AccountID string `json:"accountId"`
	Mode      string `json:"mode"`
	Reason    string `json:"reason"`
}
