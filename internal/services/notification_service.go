package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
	"partnerhub/internal/validation"
)

type PartnerRequestInput struct {
	PostID  int64  `json:"post" validate:"required,gt=0"`
	Message string `json:"message" validate:"required,max=1000"`
}

type NotificationService interface {
	RequestPartnership(ctx context.Context, sender *models.User, in PartnerRequestInput) (*models.PartnerRequest, error)
	List(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
	UnreadCount(ctx context.Context, userID int64) (int, error)
	ListSent(ctx context.Context, userID int64) ([]models.SentPartnerRequest, error)
}

// Publisher delivers a stored notification to its recipient's live connections.
type Publisher interface {
	Publish(n *models.Notification)
}

type NotificationOption func(*notificationService)

func WithPublisher(p Publisher) NotificationOption {
	return func(s *notificationService) { s.publisher = p }
}

type notificationService struct {
	repo      repositories.NotificationRepository
	posts     repositories.PostRepository
	validate  *validation.Validator
	publisher Publisher
	log       *zap.Logger
}

func NewNotificationService(repo repositories.NotificationRepository, posts repositories.PostRepository, v *validation.Validator, log *zap.Logger, opts ...NotificationOption) NotificationService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &notificationService{repo: repo, posts: posts, validate: v, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestPartnership stores the request and notifies the post author in one transaction.
func (s *notificationService) RequestPartnership(ctx context.Context, sender *models.User, in PartnerRequestInput) (*models.PartnerRequest, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	post, err := s.posts.GetActive(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.AuthorID == sender.ID {
		return nil, validation.Single("post", ErrOwnPost.Error())
	}

	exists, err := s.repo.ExistsRequest(ctx, sender.ID, post.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateRequest
	}

	req := &models.PartnerRequest{SenderID: sender.ID, PostID: post.ID, Message: in.Message}
	senderID := sender.ID
	note := &models.Notification{
		UserID:   post.AuthorID,
		SenderID: &senderID,
		PostID:   post.ID,
		Message:  fmt.Sprintf("%s sent a partnership request for '%s'", sender.Username, post.Title),
	}
	if err := s.repo.CreateRequestWithNotification(ctx, req, note); err != nil {
		// уникальный индекс (sender_id, post_id) ловит гонку между проверкой и вставкой
		if c, ok := repositories.AsConflict(err); ok && c == repositories.ConstraintPartnerRequest {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}
	s.log.Info("[notifications][partner-request] ok",
		zap.Int64("request_id", req.ID),
		zap.Int64("sender_id", sender.ID),
		zap.Int64("post_id", post.ID),
		zap.Int64("recipient_id", post.AuthorID),
	)

	// только после коммита
	if s.publisher != nil {
		senderName, reqMessage := sender.Username, req.Message
		note.SenderName = &senderName
		note.RequestMessage = &reqMessage
		s.publisher.Publish(note)
	}
	return req, nil
}

func (s *notificationService) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationService) ListSent(ctx context.Context, userID int64) ([]models.SentPartnerRequest, error) {
	return s.repo.ListSentRequests(ctx, userID)
}
