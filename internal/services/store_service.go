package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
	"partnerhub/internal/validation"
)

type CreateStoreInput struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Description   string  `json:"description" validate:"max=2000"`
	Address       string  `json:"address" validate:"required,max=255"`
	PhoneNumber   string  `json:"phone_number" validate:"required,phone"`
	AvailableTime string  `json:"available_time" validate:"max=100"`
	CategoryIDs   []int64 `json:"category_ids" validate:"required,min=1,dive,gt=0"`
}

// MyPage is the owner's dashboard: their store, their posts and the partnership requests they sent.
type MyPage struct {
	Store        *models.Store               `json:"store"`
	Posts        []models.PostSummary        `json:"posts"`
	SentRequests []models.SentPartnerRequest `json:"sent_requests"`
}

type StoreService interface {
	CreateStore(ctx context.Context, ownerID int64, in CreateStoreInput) (*models.Store, error)
	MyStore(ctx context.Context, ownerID int64) (*models.Store, error)
	MyPage(ctx context.Context, ownerID int64) (*MyPage, error)
}

type storeService struct {
	repo          repositories.StoreRepository
	categories    repositories.CategoryRepository
	posts         repositories.PostRepository
	notifications repositories.NotificationRepository
	validate      *validation.Validator
	log           *zap.Logger
}

func NewStoreService(
	repo repositories.StoreRepository,
	categories repositories.CategoryRepository,
	posts repositories.PostRepository,
	notifications repositories.NotificationRepository,
	v *validation.Validator,
	log *zap.Logger,
) StoreService {
	if log == nil {
		log = zap.NewNop()
	}
	return &storeService{
		repo:          repo,
		categories:    categories,
		posts:         posts,
		notifications: notifications,
		validate:      v,
		log:           log,
	}
}

func (s *storeService) CreateStore(ctx context.Context, ownerID int64, in CreateStoreInput) (*models.Store, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	phone, err := validation.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, validation.Single("phone_number", "Invalid phone number")
	}
	ids := uniqueIDs(in.CategoryIDs)
	if _, err := checkCategories(ctx, s.categories, "category_ids", ids); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrStoreAlreadyExists
	}

	store := &models.Store{
		OwnerID:       ownerID,
		Name:          in.Name,
		Description:   strings.TrimSpace(in.Description),
		Address:       in.Address,
		PhoneNumber:   phone,
		AvailableTime: strings.TrimSpace(in.AvailableTime),
	}
	if err := s.repo.Create(ctx, store, ids); err != nil {
		if c, ok := repositories.AsConflict(err); ok && c == repositories.ConstraintStoreOwner {
			return nil, ErrStoreAlreadyExists
		}
		return nil, err
	}
	s.log.Info("[stores][create] ok", zap.Int64("store_id", store.ID), zap.Int64("owner_id", ownerID))
	return store, nil
}

func (s *storeService) MyStore(ctx context.Context, ownerID int64) (*models.Store, error) {
	store, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrStoreNotFound
	}
	return store, nil
}

// MyPage returns nil Store when the user has not registered one yet.
func (s *storeService) MyPage(ctx context.Context, ownerID int64) (*MyPage, error) {
	store, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByAuthor(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sent, err := s.notifications.ListSentRequests(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &MyPage{Store: store, Posts: posts, SentRequests: sent}, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// checkCategories loads the categories for ids; any unknown id is a field error.
func checkCategories(ctx context.Context, repo repositories.CategoryRepository, field string, ids []int64) ([]models.Category, error) {
	found, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, validation.Single(field, "Unknown category")
	}
	return found, nil
}
