package main

type WsBaseMessage struct {
	Type string `json:"type"`
}

type WsWorkerProgress struct {
	WsBaseMessage
	WorkerInfo
}

type WsQueueUpdate struct {
	WsBaseMessage
	Jobs []Job `json:"jobs"`
}
