// Package testutil holds in-memory repository fakes and transport stubs for service and handler tests.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ---------- verification ----------

type VerificationRepo struct {
	mu      sync.Mutex
	nextID  int64
	Records []models.VerificationRecord
}

func NewVerificationRepo() *VerificationRepo { return &VerificationRepo{} }

func (r *VerificationRepo) Create(_ context.Context, rec *models.VerificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	r.Records = append(r.Records, *rec)
	return nil
}

func (r *VerificationRepo) Latest(_ context.Context, ch models.Channel, contact string) (*models.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.VerificationRecord
	for i := range r.Records {
		rec := r.Records[i]
		if rec.Channel != ch || rec.Contact != contact {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) ||
			(rec.CreatedAt.Equal(best.CreatedAt) && rec.ID > best.ID) {
			cp := rec
			best = &cp
		}
	}
	return best, nil
}

func (r *VerificationRepo) MarkVerified(_ context.Context, id int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Records {
		if r.Records[i].ID == id && !r.Records[i].IsVerified {
			r.Records[i].IsVerified = true
			t := at
			r.Records[i].VerifiedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (r *VerificationRepo) DeleteByContact(_ context.Context, ch models.Channel, contact string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.Records[:0]
	for _, rec := range r.Records {
		if rec.Channel != ch || rec.Contact != contact {
			kept = append(kept, rec)
		}
	}
	r.Records = kept
	return nil
}

func (r *VerificationRepo) CountSince(_ context.Context, ch models.Channel, contact string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.Records {
		if rec.Channel == ch && rec.Contact == contact && !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ForContact returns a copy of every record for the contact, oldest first.
func (r *VerificationRepo) ForContact(ch models.Channel, contact string) []models.VerificationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.VerificationRecord
	for _, rec := range r.Records {
		if rec.Channel == ch && rec.Contact == contact {
			out = append(out, rec)
		}
	}
	return out
}

// ---------- transports ----------

type Message struct {
	To   string
	Body string
}

// Dispatcher records every message; Err makes Send fail.
type Dispatcher struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

func (d *Dispatcher) Send(_ context.Context, to, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Sent = append(d.Sent, Message{To: to, Body: body})
	return nil
}

func (d *Dispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Sent)
}

func (d *Dispatcher) Last() Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Sent) == 0 {
		return Message{}
	}
	return d.Sent[len(d.Sent)-1]
}

// ---------- users ----------

type UserRepo struct {
	mu     sync.Mutex
	nextID int64
	Users  map[int64]*models.User
	Images map[int64]string
	Now    func() time.Time
}

func NewUserRepo() *UserRepo {
	return &UserRepo{Users: map[int64]*models.User{}, Images: map[int64]string{}, Now: time.Now}
}

func (r *UserRepo) CreateWithImage(_ context.Context, u *models.User, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Users {
		switch {
		case existing.Username == u.Username:
			return &repositories.ConflictError{Constraint: repositories.ConstraintUsername}
		case existing.Email == u.Email:
			return &repositories.ConflictError{Constraint: repositories.ConstraintEmail}
		case existing.PhoneNumber == u.PhoneNumber:
			return &repositories.ConflictError{Constraint: repositories.ConstraintPhone}
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.IsActive = true
	u.CreatedAt = r.Now()
	cp := *u
	r.Users[u.ID] = &cp
	r.Images[u.ID] = imageURL
	return nil
}

func (r *UserRepo) find(match func(*models.User) bool) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username }), nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (r *UserRepo) GetByEmailAndPhone(_ context.Context, email, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email && u.PhoneNumber == phone }), nil
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, _ := r.GetByEmail(ctx, email)
	return u != nil, nil
}

func (r *UserRepo) TakenFields(_ context.Context, username, email, phone string) (repositories.Taken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t repositories.Taken
	for _, u := range r.Users {
		t.Username = t.Username || u.Username == username
		t.Email = t.Email || u.Email == email
		t.Phone = t.Phone || u.PhoneNumber == phone
	}
	return t, nil
}

func (r *UserRepo) setPassword(id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.PasswordHash = hash
	u.RefreshToken = nil
	u.RefreshExpiresAt = nil
	return nil
}

func (r *UserRepo) UpdateRefresh(_ context.Context, id int64, token string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.RefreshToken = &token
	u.RefreshExpiresAt = &exp
	return nil
}

func (r *UserRepo) RotateRefresh(_ context.Context, oldToken, newToken string, exp time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Now()
	for _, u := range r.Users {
		if u.RefreshToken != nil && *u.RefreshToken == oldToken &&
			u.RefreshExpiresAt != nil && u.RefreshExpiresAt.After(now) && u.IsActive {
			u.RefreshToken = &newToken
			u.RefreshExpiresAt = &exp
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// Count returns how many accounts exist.
func (r *UserRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Users)
}

// ---------- password resets ----------

// PasswordResetRepo sets passwords on users; a failed Consume changes nothing.
type PasswordResetRepo struct {
	mu     sync.Mutex
	nextID int64
	users  *UserRepo
	Resets []*models.PasswordReset

	// FailConsume, when set, is returned by Consume before any change.
	FailConsume error
}

func NewPasswordResetRepo(users *UserRepo) *PasswordResetRepo {
	return &PasswordResetRepo{users: users}
}

func (r *PasswordResetRepo) Create(_ context.Context, userID int64, tokenHash string, exp time.Time) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	pr := &models.PasswordReset{ID: r.nextID, UserID: userID, TokenHash: tokenHash, ExpiresAt: exp}
	r.Resets = append(r.Resets, pr)
	cp := *pr
	return &cp, nil
}

func (r *PasswordResetRepo) GetByTokenHash(_ context.Context, tokenHash string) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pr := range r.Resets {
		if pr.TokenHash == tokenHash {
			cp := *pr
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *PasswordResetRepo) Consume(_ context.Context, id, userID int64, passwordHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailConsume != nil {
		return false, r.FailConsume
	}
	for _, pr := range r.Resets {
		if pr.ID == id && pr.UsedAt == nil {
			if err := r.users.setPassword(userID, passwordHash); err != nil {
				return false, err
			}
			t := at
			pr.UsedAt = &t
			return true, nil
		}
	}
	return false, nil
}

// ---------- categories & stores ----------

type CategoryRepo struct {
	Categories []models.Category
}

func NewCategoryRepo() *CategoryRepo {
	return &CategoryRepo{Categories: []models.Category{
		{ID: 1, Name: "cafe"}, {ID: 2, Name: "restaurant"}, {ID: 3, Name: "beauty"},
		{ID: 4, Name: "fitness"}, {ID: 5, Name: "education"}, {ID: 6, Name: "retail"},
	}}
}

func (r *CategoryRepo) List(context.Context) ([]models.Category, error) {
	return append([]models.Category{}, r.Categories...), nil
}

func (r *CategoryRepo) FindByIDs(_ context.Context, ids []int64) ([]models.Category, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []models.Category{}
	for _, c := range r.Categories {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

type StoreRepo struct {
	mu         sync.Mutex
	nextID     int64
	Stores     map[int64]*models.Store // by owner
	categories *CategoryRepo
}

func NewStoreRepo(categories *CategoryRepo) *StoreRepo {
	return &StoreRepo{Stores: map[int64]*models.Store{}, categories: categories}
}

func (r *StoreRepo) Create(ctx context.Context, s *models.Store, categoryIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Stores[s.OwnerID]; ok {
		return &repositories.ConflictError{Constraint: repositories.ConstraintStoreOwner}
	}
	r.nextID++
	s.ID = r.nextID
	cats, _ := r.categories.FindByIDs(ctx, categoryIDs)
	s.Categories = cats
	cp := *s
	r.Stores[s.OwnerID] = &cp
	return nil
}

func (r *StoreRepo) GetByOwner(_ context.Context, ownerID int64) (*models.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Stores[ownerID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// ---------- posts ----------

type PostRepo struct {
	mu     sync.Mutex
	nextID int64
	Posts  []*models.Post
	Users  *UserRepo
	Now    func() time.Time
}

func NewPostRepo(users *UserRepo) *PostRepo {
	return &PostRepo{Users: users, Now: time.Now}
}

func (r *PostRepo) Create(ctx context.Context, p *models.Post) error {
	author, _ := r.Users.GetByID(ctx, p.AuthorID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.IsActive = true
	p.CreatedAt = r.Now()
	if author != nil {
		p.Author = author.Username
	}
	for i := range p.Images {
		p.Images[i].ID = int64(i + 1)
		p.Images[i].PostID = p.ID
	}
	cp := *p
	r.Posts = append(r.Posts, &cp)
	return nil
}

func (r *PostRepo) ListActive(context.Context) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Post{}
	for i := len(r.Posts) - 1; i >= 0; i-- {
		if r.Posts[i].IsActive {
			out = append(out, *r.Posts[i])
		}
	}
	return out, nil
}

func (r *PostRepo) GetActive(_ context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Posts {
		if p.ID == id && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *PostRepo) ListByAuthor(_ context.Context, authorID int64) ([]models.PostSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.PostSummary{}
	for i := len(r.Posts) - 1; i >= 0; i-- {
		p := r.Posts[i]
		if p.AuthorID != authorID {
			continue
		}
		s := models.PostSummary{ID: p.ID, Title: p.Title, CreatedAt: p.CreatedAt}
		if th := p.Thumbnail(); th != nil {
			url := th.ImageURL
			s.ThumbnailURL = &url
		}
		out = append(out, s)
	}
	return out, nil
}

// Deactivate hides a post from the active listings.
func (r *PostRepo) Deactivate(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Posts {
		if p.ID == id {
			p.IsActive = false
		}
	}
}

// ---------- notifications ----------

type NotificationRepo struct {
	mu            sync.Mutex
	nextReqID     int64
	nextNoteID    int64
	Requests      []models.PartnerRequest
	Notifications []models.Notification
	Users         *UserRepo
	Posts         *PostRepo
	Now           func() time.Time
}

func NewNotificationRepo(users *UserRepo, posts *PostRepo) *NotificationRepo {
	return &NotificationRepo{Users: users, Posts: posts, Now: time.Now}
}

func (r *NotificationRepo) ExistsRequest(_ context.Context, senderID, postID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pr := range r.Requests {
		if pr.SenderID == senderID && pr.PostID == postID {
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepo) CreateRequestWithNotification(_ context.Context, req *models.PartnerRequest, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pr := range r.Requests {
		if pr.SenderID == req.SenderID && pr.PostID == req.PostID {
			return &repositories.ConflictError{Constraint: repositories.ConstraintPartnerRequest}
		}
	}
	now := r.Now()
	r.nextReqID++
	req.ID = r.nextReqID
	req.CreatedAt = now
	r.Requests = append(r.Requests, *req)

	r.nextNoteID++
	n.ID = r.nextNoteID
	n.CreatedAt = now
	n.IsRead = false
	r.Notifications = append(r.Notifications, *n)
	return nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	r.mu.Lock()
	notes := append([]models.Notification{}, r.Notifications...)
	reqs := append([]models.PartnerRequest{}, r.Requests...)
	r.mu.Unlock()

	out := []models.Notification{}
	for _, n := range notes {
		if n.UserID != userID {
			continue
		}
		if n.SenderID != nil {
			if u, _ := r.Users.GetByID(ctx, *n.SenderID); u != nil {
				name := u.Username
				n.SenderName = &name
			}
			for _, pr := range reqs {
				if pr.SenderID == *n.SenderID && pr.PostID == n.PostID {
					msg := pr.Message
					n.RequestMessage = &msg
				}
			}
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, userID, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Notifications {
		if r.Notifications[i].ID == id && r.Notifications[i].UserID == userID {
			r.Notifications[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepo) UnreadCount(_ context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.Notifications {
		if note.UserID == userID && !note.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *NotificationRepo) ListSentRequests(ctx context.Context, senderID int64) ([]models.SentPartnerRequest, error) {
	r.mu.Lock()
	reqs := append([]models.PartnerRequest{}, r.Requests...)
	r.mu.Unlock()

	out := []models.SentPartnerRequest{}
	for i := len(reqs) - 1; i >= 0; i-- {
		pr := reqs[i]
		if pr.SenderID != senderID {
			continue
		}
		s := models.SentPartnerRequest{ID: pr.ID, PostID: pr.PostID, Message: pr.Message, CreatedAt: pr.CreatedAt}
		r.Posts.mu.Lock()
		for _, p := range r.Posts.Posts {
			if p.ID == pr.PostID {
				s.PostTitle = p.Title
				if th := p.Thumbnail(); th != nil {
					url := th.ImageURL
					s.PostThumbnail = &url
				}
			}
		}
		r.Posts.mu.Unlock()
		out = append(out, s)
	}
	return out, nil
}

// ---------- coupons ----------

type CouponRepo struct {
	mu      sync.Mutex
	nextQR  int64
	QRs     map[int64]*models.CouponQR // by store
	Coupons map[uuid.UUID]*models.Coupon
}

func NewCouponRepo() *CouponRepo {
	return &CouponRepo{QRs: map[int64]*models.CouponQR{}, Coupons: map[uuid.UUID]*models.Coupon{}}
}

func (r *CouponRepo) UpsertQR(_ context.Context, qr *models.CouponQR) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.QRs[qr.StoreID]; ok {
		qr.ID = existing.ID
		qr.CreatedAt = existing.CreatedAt
	} else {
		r.nextQR++
		qr.ID = r.nextQR
	}
	qr.IsActive = true
	cp := *qr
	r.QRs[qr.StoreID] = &cp
	return nil
}

func (r *CouponRepo) GetActiveQRByToken(_ context.Context, token uuid.UUID) (*models.CouponQR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, qr := range r.QRs {
		if qr.Token == token && qr.IsActive {
			cp := *qr
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *CouponRepo) IssueIfNone(_ context.Context, c *models.Coupon) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, held := range r.Coupons {
		if held.IssuedBy == c.IssuedBy && held.IssuedToPhone == c.IssuedToPhone && !held.Used && !held.ExpiresAt.Before(c.IssuedAt) {
			return false, nil
		}
	}
	cp := *c
	r.Coupons[c.ID] = &cp
	return true, nil
}

func (r *CouponRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.Coupons[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *CouponRepo) Redeem(_ context.Context, id uuid.UUID, storeID int64, now time.Time) (*models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Coupons[id]
	if !ok || c.Used || c.ExpiresAt.Before(now) {
		return nil, nil
	}
	c.Used = true
	t := now
	c.UsedAt = &t
	s := storeID
	c.UsedAtStore = &s
	cp := *c
	return &cp, nil
}

func (r *CouponRepo) ListIssuedBy(_ context.Context, storeID int64) ([]models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Coupon{}
	for _, c := range r.Coupons {
		if c.IssuedBy == storeID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

var (
	_ repositories.VerificationRepository  = (*VerificationRepo)(nil)
	_ repositories.UserRepository          = (*UserRepo)(nil)
	_ repositories.PasswordResetRepository = (*PasswordResetRepo)(nil)
	_ repositories.CategoryRepository      = (*CategoryRepo)(nil)
	_ repositories.StoreRepository         = (*StoreRepo)(nil)
	_ repositories.PostRepository          = (*PostRepo)(nil)
	_ repositories.NotificationRepository  = (*NotificationRepo)(nil)
	_ repositories.CouponRepository        = (*CouponRepo)(nil)
)
