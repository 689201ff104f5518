package productsvc

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
)

// CategoryDTO is the external view of a category.
type CategoryDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CategoryInput captures a create or update request.
type CategoryInput struct {
	Name        string
	Description string
}

func (in CategoryInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	return nil
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toCategoryDTO(&rows[i]))
	}
	return out, nil
}

// CreateCategory adds a category. Names are unique.
func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "uq_categories_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}

	if err := s.publish(ctx, events.TopicCategoryCreated, events.CategoryCreated{
		CategoryID: category.ID,
		Name:       category.Name,
		Timestamp:  s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	dto := toCategoryDTO(category)
	return &dto, nil
}

// UpdateCategory renames or redescribes a category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, input CategoryInput) (*CategoryDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	category, err := s.store.FindCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	category.Name = strings.TrimSpace(input.Name)
	category.Description = strings.TrimSpace(input.Description)
	if err := s.store.SaveCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "uq_categories_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save category")
	}

	if err := s.publish(ctx, events.TopicCategoryUpdated, events.CategoryUpdated{
		CategoryID: category.ID,
		Name:       category.Name,
		Timestamp:  s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	dto := toCategoryDTO(category)
	return &dto, nil
}

// DeleteCategory removes a category. Products keep their rows and fall
// back to uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}

	return s.publish(ctx, events.TopicCategoryDeleted, events.CategoryDeleted{
		CategoryID: id,
		Timestamp:  s.now().UTC(),
	})
}

func toCategoryDTO(category *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
	}
}
