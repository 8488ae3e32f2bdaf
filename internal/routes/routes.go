package routes

import (
	"github.com/gin-gonic/gin"

	"partnerhub/internal/handlers"
	"partnerhub/internal/middleware"
	"partnerhub/internal/models"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	Posts         *handlers.PostHandler
	Stores        *handlers.StoreHandler
	Coupons       *handlers.CouponHandler
	Notifications *handlers.NotificationHandler
}

// SetupRoutes mounts the API under /api/v1; jwt marks the groups that need a Bearer token.
func SetupRoutes(r *gin.Engine, h Handlers, auth middleware.TokenParser) *gin.Engine {
	api := r.Group("/api/v1")
	jwt := []gin.HandlerFunc{
		middleware.AuthMiddleware(auth),
		middleware.RequireRoles(models.RoleUser, models.RoleAdmin),
	}

	// ---- auth
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup/", h.Auth.Signup)
		authGroup.POST("/login/", h.Auth.Login)
		authGroup.POST("/token/refresh/", h.Auth.RefreshToken)
		authGroup.GET("/me/", append(jwt, h.Auth.Me)...)
		authGroup.POST("/find-id/", h.Auth.FindID)
		authGroup.POST("/reset-password-request/", h.Auth.ResetPasswordRequest)
		authGroup.GET("/reset-password-validate/", h.Auth.ResetPasswordValidate)
		authGroup.POST("/reset-password-confirm/", h.Auth.ResetPasswordConfirm)
		authGroup.POST("/email-verify/send/", h.Auth.EmailVerifySend)
		authGroup.POST("/email-verify/confirm/", h.Auth.EmailVerifyConfirm)
		authGroup.POST("/image-upload/", h.Auth.ImageUpload)
	}

	// ---- posts
	posts := api.Group("/posts")
	{
		posts.GET("/categories/", h.Posts.Categories)

		protected := posts.Group("", jwt...)
		protected.GET("/", h.Posts.List)
		protected.POST("/", h.Posts.Create)
		protected.GET("/myposts/", h.Posts.MyPosts)
		protected.POST("/image-upload/", h.Posts.ImageUpload)
		protected.GET("/:id/", h.Posts.Get)
	}

	// ---- stores
	stores := api.Group("/stores", jwt...)
	{
		stores.POST("/", h.Stores.Create)
		stores.GET("/me/", h.Stores.Me)
	}

	// ---- coupons
	coupons := api.Group("/coupons")
	{
		// потребитель без аккаунта
		coupons.POST("/phone-verify/send/", h.Coupons.PhoneVerifySend)
		coupons.POST("/phone-verify/confirm/", h.Coupons.PhoneVerifyConfirm)
		coupons.POST("/issue/", h.Coupons.Issue)

		owner := coupons.Group("", jwt...)
		owner.POST("/qr/", h.Coupons.RegisterQR)
		owner.GET("/issued/", h.Coupons.Issued)
		owner.POST("/:id/redeem/", h.Coupons.Redeem)
	}

	// ---- notifications
	notes := api.Group("/notifications", jwt...)
	{
		notes.POST("/partner-request/", h.Notifications.PartnerRequest)
		notes.GET("/", h.Notifications.List)
		notes.PATCH("/:id/read/", h.Notifications.MarkRead)
		notes.GET("/unread-count/", h.Notifications.UnreadCount)
		notes.GET("/sent/", h.Notifications.Sent)
		notes.GET("/mypage/", h.Stores.MyPage)
		notes.GET("/ws/", h.Notifications.Stream)
	}

	return r
}
