package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
	"partnerhub/internal/validation"
)

type PostImageInput struct {
	ImageURL    string `json:"image_url" validate:"required,url"`
	IsThumbnail bool   `json:"is_thumbnail"`
}

type CreatePostInput struct {
	Title                  string           `json:"title" validate:"required,max=100"`
	StoreName              string           `json:"store_name" validate:"required,max=100"`
	Description            string           `json:"description" validate:"required"`
	Address                string           `json:"address" validate:"required,max=255"`
	PhoneNumber            string           `json:"phone_number" validate:"required,phone"`
	AvailableTime          string           `json:"available_time" validate:"max=100"`
	StoreCategoryIDs       []int64          `json:"store_category_ids" validate:"required,min=1,dive,gt=0"`
	PartnershipCategoryIDs []int64          `json:"partnership_category_ids" validate:"required,min=1,dive,gt=0"`
	ExtraMessage           string           `json:"extra_message" validate:"max=1000"`
	Images                 []PostImageInput `json:"images" validate:"required,min=1,max=10,dive"`
}

type PostService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreatePost(ctx context.Context, authorID int64, in CreatePostInput) (*models.Post, error)
	ListActivePosts(ctx context.Context) ([]models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	MyPosts(ctx context.Context, authorID int64) ([]models.PostSummary, error)
}

type postService struct {
	repo       repositories.PostRepository
	categories repositories.CategoryRepository
	validate   *validation.Validator
	log        *zap.Logger
}

func NewPostService(repo repositories.PostRepository, categories repositories.CategoryRepository, v *validation.Validator, log *zap.Logger) PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &postService{repo: repo, categories: categories, validate: v, log: log}
}

func (s *postService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.categories.List(ctx)
}

func (s *postService) CreatePost(ctx context.Context, authorID int64, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.StoreName = strings.TrimSpace(in.StoreName)
	in.Address = strings.TrimSpace(in.Address)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	phone, err := validation.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, validation.Single("phone_number", "Invalid phone number")
	}

	thumbs := 0
	for _, img := range in.Images {
		if img.IsThumbnail {
			thumbs++
		}
	}
	if thumbs != 1 {
		return nil, validation.Single("images", "Exactly one image must be the thumbnail")
	}

	storeCats, err := checkCategories(ctx, s.categories, "store_category_ids", uniqueIDs(in.StoreCategoryIDs))
	if err != nil {
		return nil, err
	}
	partnerCats, err := checkCategories(ctx, s.categories, "partnership_category_ids", uniqueIDs(in.PartnershipCategoryIDs))
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:              authorID,
		Title:                 in.Title,
		StoreName:             in.StoreName,
		Description:           strings.TrimSpace(in.Description),
		Address:               in.Address,
		PhoneNumber:           phone,
		AvailableTime:         strings.TrimSpace(in.AvailableTime),
		StoreCategories:       storeCats,
		PartnershipCategories: partnerCats,
		ExtraMessage:          strings.TrimSpace(in.ExtraMessage),
	}
	for _, img := range in.Images {
		post.Images = append(post.Images, models.PostImage{ImageURL: img.ImageURL, IsThumbnail: img.IsThumbnail})
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}
	s.log.Info("[posts][create] ok", zap.Int64("post_id", post.ID), zap.Int64("author_id", authorID))
	return post, nil
}

func (s *postService) ListActivePosts(ctx context.Context) ([]models.Post, error) {
	return s.repo.ListActive(ctx)
}

func (s *postService) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.repo.GetActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) MyPosts(ctx context.Context, authorID int64) ([]models.PostSummary, error) {
	return s.repo.ListByAuthor(ctx, authorID)
}
