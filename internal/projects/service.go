package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

// Service owns project lifecycle and group linking.
type Service struct {
	repo Repo
	logg *logger.Logger
}

// NewService validates dependencies and builds the service.
func NewService(repo Repo, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("project repo is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Create derives the slug from the name and persists the project with its
// initial group links in one transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (*ProjectView, error) {
	slug := Slugify(input.Name)
	if slug == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "project name produces an empty slug")
	}

	project := &models.Project{
		Name: strings.TrimSpace(input.Name),
		Slug: slug,
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		project.Description = &desc
	}

	groups := make([]models.ProjectGroup, 0, len(input.Groups))
	seen := map[string]bool{}
	for _, g := range input.Groups {
		if seen[g.GroupID] {
			continue
		}
		seen[g.GroupID] = true
		groups = append(groups, models.ProjectGroup{
			GroupID:   g.GroupID,
			GroupName: g.GroupName,
		})
	}

	if err := s.repo.Create(ctx, project, groups); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.CodeConflict, fmt.Sprintf("a project with slug %q already exists", slug))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating project")
	}

	s.logg.Info(s.logg.WithProjectID(ctx, project.ID.String()), "project created")
	return toView(project), nil
}

// Update renames the project and, when a group list is supplied, replaces
// its links. The slug never changes, so webhook URLs survive a rename.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProjectView, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "project not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading project")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "project name is required")
	}
	project.Name = name
	project.Description = nil
	if desc := strings.TrimSpace(input.Description); desc != "" {
		project.Description = &desc
	}

	var groups []models.ProjectGroup
	if input.Groups != nil {
		groups = make([]models.ProjectGroup, 0, len(input.Groups))
		seen := map[string]bool{}
		for _, g := range input.Groups {
			if seen[g.GroupID] {
				continue
			}
			seen[g.GroupID] = true
			groups = append(groups, models.ProjectGroup{
				ProjectID: id,
				GroupID:   g.GroupID,
				GroupName: g.GroupName,
			})
		}
	}

	if err := s.repo.Update(ctx, project, groups); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating project")
	}

	s.logg.Info(s.logg.WithProjectID(ctx, id.String()), "project updated")
	return s.Get(ctx, id)
}

// Get loads one project by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ProjectView, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "project not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading project")
	}
	return toView(project), nil
}

// ResolveSlug loads one project by its webhook slug.
func (s *Service) ResolveSlug(ctx context.Context, slug string) (*models.Project, error) {
	project, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("no project with slug %q", slug))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "resolving project slug")
	}
	return project, nil
}

// List returns every project.
func (s *Service) List(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing projects")
	}
	out := make([]ProjectView, 0, len(projects))
	for i := range projects {
		out = append(out, *toView(&projects[i]))
	}
	return out, nil
}

// Delete removes the project and cascades to purchases, group links, stored
// members and webhook logs.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "deleting project")
	}
	s.logg.Warn(s.logg.WithProjectID(ctx, id.String()), "project deleted with all purchases and group links")
	return nil
}

// AddGroup links a group to the project. Linking the same group twice is a
// conflict.
func (s *Service) AddGroup(ctx context.Context, projectID uuid.UUID, input GroupInput) (*GroupView, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}

	group := &models.ProjectGroup{
		ProjectID: projectID,
		GroupID:   input.GroupID,
		GroupName: input.GroupName,
	}
	if err := s.repo.AddGroup(ctx, group); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.CodeConflict, "group is already linked to this project")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "linking group")
	}

	return &GroupView{ID: group.ID, GroupID: group.GroupID, GroupName: group.GroupName}, nil
}

// RemoveGroup unlinks a group from the project.
func (s *Service) RemoveGroup(ctx context.Context, projectID uuid.UUID, groupID string) error {
	removed, err := s.repo.RemoveGroup(ctx, projectID, groupID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "unlinking group")
	}
	if !removed {
		return apperrors.New(apperrors.CodeNotFound, "group is not linked to this project")
	}
	return nil
}

// Stats returns the dashboard summary for one project.
func (s *Service) Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "computing project stats")
	}
	return stats, nil
}

func toView(p *models.Project) *ProjectView {
	view := &ProjectView{
		ID:         p.ID,
		Name:       p.Name,
		Slug:       p.Slug,
		LastSyncAt: p.LastSyncAt,
		CreatedAt:  p.CreatedAt,
		Groups:     make([]GroupView, 0, len(p.Groups)),
	}
	if p.Description != nil {
		view.Description = *p.Description
	}
	for _, g := range p.Groups {
		view.Groups = append(view.Groups, GroupView{
			ID:        g.ID,
			GroupID:   g.GroupID,
			GroupName: g.GroupName,
		})
	}
	return view
}
