package dto

import (
	"time"

	"github.com/codelens/backend/internal/domain"
)

type RemoteSourceRequest struct {
	Host       string `json:"host" validate:"required"`
	Port       int    `json:"port"`
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Path       string `json:"path" validate:"required"`
}

type CreateProjectRequest struct {
	Name        string               `json:"name" validate:"required"`
	Path        string               `json:"path,omitempty"`
	Description string               `json:"description,omitempty"`
	Remote      *RemoteSourceRequest `json:"remote,omitempty"`
}

func (r *CreateProjectRequest) Validate() []string {
	var errors []string

	if r.Name == "" {
		errors = append(errors, "name is required")
	}

	if r.Remote == nil {
		if r.Path == "" {
			errors = append(errors, "path is required for local projects")
		}
		return errors
	}

	if r.Path != "" {
		errors = append(errors, "path and remote are mutually exclusive")
	}
	if r.Remote.Host == "" {
		errors = append(errors, "remote.host is required")
	}
	if r.Remote.Username == "" {
		errors = append(errors, "remote.username is required")
	}
	if r.Remote.Path == "" {
		errors = append(errors, "remote.path is required")
	}
	if r.Remote.Password == "" && r.Remote.PrivateKey == "" {
		errors = append(errors, "either remote.password or remote.private_key is required")
	}

	return errors
}

func (r *RemoteSourceRequest) GetPort() int {
	if r.Port == 0 {
		return 22
	}
	return r.Port
}

type ProjectResponse struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Path         string     `json:"path"`
	Description  string     `json:"description,omitempty"`
	RemoteHost   string     `json:"remote_host,omitempty"`
	RemotePort   int        `json:"remote_port,omitempty"`
	RemotePath   string     `json:"remote_path,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func ProjectToResponse(project *domain.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Path:        project.Path,
		Description: project.Description,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
	if project.HasRemoteSource() {
		resp.RemoteHost = project.RemoteHost
		resp.RemotePort = project.RemotePort
		resp.RemotePath = project.RemotePath
		resp.LastSyncedAt = project.LastSyncedAt
	}
	return resp
}

func ProjectsToResponse(projects []domain.Project) []ProjectResponse {
	responses := make([]ProjectResponse, len(projects))
	for i, project := range projects {
		responses[i] = ProjectToResponse(&project)
	}
	return responses
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}
