package config

const (
	// TopicIngestTask is the NSQ topic carrying document processing tasks.
	TopicIngestTask = "ingest.task"
)
