package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
	"github.com/codelens/backend/internal/infrastructure/logger"
	"github.com/codelens/backend/internal/infrastructure/remote"
	"github.com/codelens/backend/pkg/utils/crypto"
)

// authDataPayload is the credential blob stored AES-encrypted on a project
// with a remote source.
type authDataPayload struct {
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	SSHKey   string `json:"ssh_key,omitempty"`
}

type projectService struct {
	repo          ports.ProjectRepository
	logger        *logger.Logger
	workspaceRoot string
	encryptionKey string
	importLimits  remote.DownloadLimits
	mu            sync.Mutex
	locks         map[string]*sync.Mutex
	enableLocks   bool
}

type ProjectServiceConfig struct {
	Repository    ports.ProjectRepository
	Logger        *logger.Logger
	WorkspaceRoot string
	EncryptionKey string
	ImportLimits  remote.DownloadLimits
	EnableLocks   bool
}

func NewProjectService(cfg ProjectServiceConfig) ports.ProjectService {
	return &projectService{
		repo:          cfg.Repository,
		logger:        cfg.Logger,
		workspaceRoot: cfg.WorkspaceRoot,
		encryptionKey: cfg.EncryptionKey,
		importLimits:  cfg.ImportLimits,
		locks:         make(map[string]*sync.Mutex),
		enableLocks:   cfg.EnableLocks,
	}
}

func (s *projectService) lockKeys(keys ...string) func() {
	if !s.enableLocks {
		return func() {}
	}
	if len(keys) == 0 {
		return func() {}
	}
	sort.Strings(keys)
	s.mu.Lock()
	acquired := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := s.locks[k]
		if m == nil {
			m = &sync.Mutex{}
			s.locks[k] = m
		}
		acquired = append(acquired, m)
	}
	s.mu.Unlock()
	for _, m := range acquired {
		m.Lock()
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func (s *projectService) CreateProject(ctx context.Context, input ports.CreateProjectInput) (*domain.Project, error) {
	unlock := s.lockKeys(fmt.Sprintf("project:%s", input.Name))
	defer unlock()

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByName(ctx, input.Name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		s.logger.Warnw("project_name_taken", "name", input.Name)
		return nil, ErrProjectAlreadyExists
	}

	project := &domain.Project{
		Name:        input.Name,
		Description: input.Description,
	}

	if input.Remote != nil {
		auth := authDataPayload{
			User:     input.Remote.User,
			Password: input.Remote.Password,
			SSHKey:   input.Remote.PrivateKey,
		}
		encrypted, err := s.encryptAuthData(auth)
		if err != nil {
			s.logger.Errorw("project_auth_encrypt_failed", "name", input.Name, "error", err)
			return nil, ErrEncryptionFailed
		}

		port := input.Remote.Port
		if port == 0 {
			port = 22
		}
		project.RemoteHost = input.Remote.Host
		project.RemotePort = port
		project.RemotePath = input.Remote.Path
		project.AuthData = encrypted
		project.Path = filepath.Join("imports", slugify(input.Name))

		if err := s.importTree(ctx, project, auth); err != nil {
			s.logger.Errorw("project_import_failed", "name", input.Name, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrProjectImportFailed, err)
		}
		now := time.Now()
		project.LastSyncedAt = &now
	} else {
		project.Path = input.Path
		info, err := os.Stat(s.resolvePath(input.Path))
		if err != nil || !info.IsDir() {
			s.logger.Warnw("project_path_missing", "name", input.Name, "path", input.Path)
			return nil, ErrProjectPathMissing
		}
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Infow("project_created",
		"id", project.ID,
		"name", project.Name,
		"remote", project.HasRemoteSource(),
	)
	return project, nil
}

func (s *projectService) GetProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.GetAll(ctx)
}

func (s *projectService) GetProjectByID(ctx context.Context, id uint) (*domain.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (s *projectService) DeleteProject(ctx context.Context, id uint) error {
	unlock := s.lockKeys(fmt.Sprintf("project:%d", id))
	defer unlock()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("project_deleted", "id", id)
	return nil
}

func (s *projectService) SyncProject(ctx context.Context, id uint) (*domain.Project, error) {
	unlock := s.lockKeys(fmt.Sprintf("project:%d", id))
	defer unlock()

	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if !project.HasRemoteSource() {
		return nil, ErrProjectNotRemote
	}

	auth, err := s.decryptAuthData(project.AuthData)
	if err != nil {
		s.logger.Errorw("project_auth_decrypt_failed", "id", id, "error", err)
		return nil, ErrDecryptionFailed
	}

	if err := s.importTree(ctx, project, auth); err != nil {
		s.logger.Errorw("project_sync_failed", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProjectImportFailed, err)
	}

	now := time.Now()
	project.LastSyncedAt = &now
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Infow("project_synced", "id", project.ID, "name", project.Name)
	return project, nil
}

// importTree connects to the project's remote host, verifies the source
// directory and materializes it under the workspace root.
func (s *projectService) importTree(ctx context.Context, project *domain.Project, auth authDataPayload) error {
	client := remote.NewSSHClient(remote.SSHConfig{
		Host:       project.RemoteHost,
		Port:       project.RemotePort,
		User:       auth.User,
		Password:   auth.Password,
		PrivateKey: auth.SSHKey,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	})

	conn, err := client.ConnectWithRetry()
	if err != nil {
		return err
	}
	defer conn.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := client.Execute(checkCtx, conn, fmt.Sprintf("test -d %q", project.RemotePath)); err != nil {
		return fmt.Errorf("remote path %s is not a directory: %w", project.RemotePath, err)
	}

	localRoot := filepath.Join(s.workspaceRoot, project.Path)
	stats, err := client.DownloadTree(ctx, conn, project.RemotePath, localRoot, s.importLimits)
	if err != nil {
		return err
	}

	s.logger.Infow("project_import_done",
		"name", project.Name,
		"files", stats.Files,
		"bytes", stats.Bytes,
		"skipped", stats.Skipped,
		"truncated", stats.Truncated,
	)
	return nil
}

func (s *projectService) validateInput(input ports.CreateProjectInput) error {
	if input.Name == "" {
		return ErrProjectInvalidInput
	}
	if input.Remote == nil {
		if input.Path == "" {
			return ErrProjectInvalidInput
		}
		return nil
	}
	r := input.Remote
	if r.Host == "" || r.User == "" || r.Path == "" {
		return ErrProjectInvalidInput
	}
	if r.Password == "" && r.PrivateKey == "" {
		return ErrProjectInvalidInput
	}
	return nil
}

func (s *projectService) encryptAuthData(auth authDataPayload) (string, error) {
	jsonData, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	return crypto.Encrypt(string(jsonData), s.encryptionKey)
}

func (s *projectService) decryptAuthData(encrypted string) (authDataPayload, error) {
	var payload authDataPayload
	plain, err := crypto.Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal([]byte(plain), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// resolvePath turns a workspace-relative project path into an absolute one.
func (s *projectService) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.workspaceRoot, path)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a filesystem-safe directory name for an imported project.
func slugify(name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "project"
	}
	return slug
}
