package service

import (
	"context"
	"fmt"
	"time"

	"trivia-service/internal/models"
	"trivia-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
)

type CategoryService struct {
	Repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{Repo: repo}
}

func (s *CategoryService) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	category.QuestionCount = 0
	category.CreatedAt = time.Now()
	return s.Repo.Create(ctx, category)
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.FindAll(ctx)
}

func (s *CategoryService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.Repo.FindByID(ctx, id)
}

func (s *CategoryService) RenameCategory(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	return s.Repo.Update(ctx, id, bson.M{"name": name})
}

func (s *CategoryService) DeleteCategory(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}
