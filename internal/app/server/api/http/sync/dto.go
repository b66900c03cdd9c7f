package sync

import (
	"healthsync/internal/domain/sync"
)

type uploadInput struct {
	Body sync.UploadRequest
}

type uploadOutput struct {
	Body *sync.UploadResponse
}

type downloadInput struct {
	Body sync.DownloadRequest
}

type downloadOutput struct {
	Body *sync.DownloadResponse
}

type statusInput struct {
	Page     int    `query:"page" minimum:"1" default:"1"`
	Limit    int    `query:"limit" minimum:"1" maximum:"100" default:"20"`
	From     string `query:"from" format:"date-time" doc:"Начало интервала по времени старта сессии"`
	To       string `query:"to" format:"date-time" doc:"Конец интервала по времени старта сессии"`
	Status   string `query:"status" enum:"initiated,in_progress,completed,failed,cancelled,partial"`
	SyncType string `query:"syncType" enum:"upload,download,bidirectional,conflict_resolution"`
}

type statusOutput struct {
	Body *sync.StatusResponse
}

type sessionInput struct {
	ID string `path:"id" doc:"Идентификатор сессии синхронизации"`
}

type sessionOutput struct {
	Body *sync.Session
}

type conflictsInput struct {
	Page  int `query:"page" minimum:"1" default:"1"`
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"20"`
}

type conflictsOutput struct {
	Body *sync.ConflictsResponse
}

type resolveInput struct {
	Body sync.ResolveConflictRequest
}

type resolveOutput struct {
	Body *sync.ResolveConflictResponse
}
