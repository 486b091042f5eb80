package projects

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{name: "Curso de Vendas 2024", want: "curso-de-vendas-2024"},
		{name: "  Mentoria Avançada!  ", want: "mentoria-avan-ada"},
		{name: "---", want: ""},
		{name: "Já Comprou?", want: "j-comprou"},
		{name: "simple", want: "simple"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.name), "input %q", tc.name)
	}
}

type stubRepo struct {
	Repo
	created      *models.Project
	createdLinks []models.ProjectGroup
	createErr    error
	byID         map[uuid.UUID]*models.Project
	updated      *models.Project
	updatedLinks []models.ProjectGroup
	addGroupErr  error
	removed      bool
	deleted      []uuid.UUID
}

func (r *stubRepo) Create(ctx context.Context, project *models.Project, groups []models.ProjectGroup) error {
	if r.createErr != nil {
		return r.createErr
	}
	project.ID = uuid.New()
	r.created = project
	r.createdLinks = groups
	return nil
}

func (r *stubRepo) Update(ctx context.Context, project *models.Project, groups []models.ProjectGroup) error {
	r.updated = project
	r.updatedLinks = groups
	return nil
}

func (r *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubRepo) AddGroup(ctx context.Context, group *models.ProjectGroup) error {
	return r.addGroupErr
}

func (r *stubRepo) RemoveGroup(ctx context.Context, projectID uuid.UUID, groupID string) (bool, error) {
	return r.removed, nil
}

func newTestProjectService(t *testing.T, repo Repo) *Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	return svc
}

func TestCreateDerivesSlugAndDedupsGroups(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestProjectService(t, repo)

	view, err := svc.Create(context.Background(), CreateInput{
		Name: "Curso de Vendas 2024",
		Groups: []GroupInput{
			{GroupID: "g1@g.us", GroupName: "VIP"},
			{GroupID: "g1@g.us", GroupName: "VIP again"},
			{GroupID: "g2@g.us", GroupName: "Alunos"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "curso-de-vendas-2024", view.Slug)
	assert.Len(t, repo.createdLinks, 2, "duplicate group ids collapse")
}

func TestCreateRejectsEmptySlug(t *testing.T) {
	svc := newTestProjectService(t, &stubRepo{})

	_, err := svc.Create(context.Background(), CreateInput{Name: "!!!"})
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code())
}

func TestCreateMapsDuplicateSlugToConflict(t *testing.T) {
	repo := &stubRepo{createErr: gorm.ErrDuplicatedKey}
	svc := newTestProjectService(t, repo)

	_, err := svc.Create(context.Background(), CreateInput{Name: "Curso"})
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code())
}

func TestUpdateRenamesAndReplacesGroups(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{byID: map[uuid.UUID]*models.Project{id: {ID: id, Name: "Antigo", Slug: "antigo"}}}
	svc := newTestProjectService(t, repo)

	view, err := svc.Update(context.Background(), id, UpdateInput{
		Name: "Novo Nome",
		Groups: []GroupInput{
			{GroupID: "g1@g.us", GroupName: "VIP"},
			{GroupID: "g1@g.us", GroupName: "VIP again"},
			{GroupID: "g2@g.us", GroupName: "Alunos"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Novo Nome", repo.updated.Name)
	assert.Equal(t, "antigo", view.Slug, "slug survives a rename")
	assert.Len(t, repo.updatedLinks, 2, "duplicate group ids collapse")
}

func TestUpdateWithoutGroupsKeepsLinks(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{byID: map[uuid.UUID]*models.Project{id: {ID: id, Name: "Antigo", Slug: "antigo"}}}
	svc := newTestProjectService(t, repo)

	_, err := svc.Update(context.Background(), id, UpdateInput{Name: "Novo"})
	require.NoError(t, err)
	assert.Nil(t, repo.updatedLinks, "absent group list leaves links alone")
}

func TestUpdateUnknownProjectIsNotFound(t *testing.T) {
	repo := &stubRepo{byID: map[uuid.UUID]*models.Project{}}
	svc := newTestProjectService(t, repo)

	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{Name: "Novo"})
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code())
	assert.Nil(t, repo.updated)
}

func TestDeleteUnknownProjectIsNotFound(t *testing.T) {
	repo := &stubRepo{byID: map[uuid.UUID]*models.Project{}}
	svc := newTestProjectService(t, repo)

	err := svc.Delete(context.Background(), uuid.New())
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code())
	assert.Empty(t, repo.deleted)
}

func TestAddGroupDuplicateIsConflict(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{
		byID:        map[uuid.UUID]*models.Project{id: {ID: id, Name: "p", Slug: "p"}},
		addGroupErr: gorm.ErrDuplicatedKey,
	}
	svc := newTestProjectService(t, repo)

	_, err := svc.AddGroup(context.Background(), id, GroupInput{GroupID: "g1", GroupName: "G"})
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code())
}

func TestRemoveGroupMissingLinkIsNotFound(t *testing.T) {
	repo := &stubRepo{removed: false}
	svc := newTestProjectService(t, repo)

	err := svc.RemoveGroup(context.Background(), uuid.New(), "g1")
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code())
}
