package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== ENUMS ====================

type AnalysisStage string

const (
	StageCode       AnalysisStage = "code"
	StageDeployment AnalysisStage = "deployment"
	StageDocs       AnalysisStage = "docs"
	StageLLM        AnalysisStage = "llm"
)

type TaskStatus string

const (
	TaskStatusQueued              TaskStatus = "queued"
	TaskStatusAnalyzingCode       TaskStatus = "analyzing-code"
	TaskStatusAnalyzingDeployment TaskStatus = "analyzing-deployment"
	TaskStatusAnalyzingDocs       TaskStatus = "analyzing-docs"
	TaskStatusAnalyzingLLM        TaskStatus = "analyzing-llm"
	TaskStatusCompleted           TaskStatus = "completed"
	TaskStatusFailed              TaskStatus = "failed"
)

// Status returns the task status a task carries while this stage runs.
func (s AnalysisStage) Status() TaskStatus {
	switch s {
	case StageCode:
		return TaskStatusAnalyzingCode
	case StageDeployment:
		return TaskStatusAnalyzingDeployment
	case StageDocs:
		return TaskStatusAnalyzingDocs
	case StageLLM:
		return TaskStatusAnalyzingLLM
	}
	return TaskStatusQueued
}

// Rank orders statuses along the fixed stage progression. Terminal states
// share the highest rank so any observed status sequence is non-decreasing.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusQueued:
		return 0
	case TaskStatusAnalyzingCode:
		return 1
	case TaskStatusAnalyzingDeployment:
		return 2
	case TaskStatusAnalyzingDocs:
		return 3
	case TaskStatusAnalyzingLLM:
		return 4
	case TaskStatusCompleted, TaskStatusFailed:
		return 5
	}
	return -1
}

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		// sqlite hands TEXT columns back as string
		return json.Unmarshal([]byte(v), j)
	}
	return errors.New("failed to scan JSONB: invalid type")
}

// ==================== ENTITIES ====================

type Project struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Path        string `gorm:"size:1024;not null" json:"path"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Remote source (optional). AuthData holds the encrypted credentials.
	RemoteHost   string     `gorm:"size:255" json:"remote_host,omitempty"`
	RemotePort   int        `gorm:"default:22" json:"remote_port,omitempty"`
	RemotePath   string     `gorm:"size:1024" json:"remote_path,omitempty"`
	AuthData     string     `gorm:"type:text" json:"-"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	// Relationships
	Tasks []AnalysisTask `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}

// HasRemoteSource reports whether the project tree is pulled from a remote
// host rather than registered in place.
func (p *Project) HasRemoteSource() bool {
	return p.RemoteHost != ""
}

type AnalysisTask struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status TaskStatus `gorm:"size:32;not null;default:'queued';index" json:"status"`
	Stages JSONB      `gorm:"type:jsonb" json:"stages"`
	Error  string     `gorm:"type:text" json:"error,omitempty"`

	// Relationships
	ProjectID uint     `gorm:"not null;index" json:"project_id"`
	Project   *Project `gorm:"constraint:OnDelete:CASCADE" json:"project,omitempty"`
}
