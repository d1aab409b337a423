package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/cliptube/internal/model"
	"github.com/hitoshi/cliptube/internal/password"
	"github.com/hitoshi/cliptube/internal/repository"
	"github.com/hitoshi/cliptube/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn         func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFn   func(ctx context.Context, username string) (*model.User, error)
	findByEmailFn      func(ctx context.Context, email string) (*model.User, error)
	createFn           func(ctx context.Context, user *model.User) error
	updateDetailsFn    func(ctx context.Context, id, fullName, email string) (*model.User, error)
	updateAvatarFn     func(ctx context.Context, id, url string) (*model.User, error)
	updateCoverImageFn func(ctx context.Context, id, url string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateDetails(ctx context.Context, id, fullName, email string) (*model.User, error) {
	if m.updateDetailsFn != nil {
		return m.updateDetailsFn(ctx, id, fullName, email)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdatePasswordHash(_ context.Context, _, _ string) error { return nil }

func (m *mockUserRepo) UpdateAvatarURL(ctx context.Context, id, url string) (*model.User, error) {
	if m.updateAvatarFn != nil {
		return m.updateAvatarFn(ctx, id, url)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateCoverImageURL(ctx context.Context, id, url string) (*model.User, error) {
	if m.updateCoverImageFn != nil {
		return m.updateCoverImageFn(ctx, id, url)
	}
	return nil, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

// --- テストヘルパー ---

func newTestService(repo *mockUserRepo) *Service {
	return NewService(repo, password.NewBcryptHasher(), security.NewProfileSanitizer())
}

func expectAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username: "ana",
		Email:    "ana@example.com",
		FullName: "Ana Test",
		Password: "long-enough-password",
	}
}

// --- テスト ---

func TestRegister_Success(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := newTestService(repo)

	got, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created == nil {
		t.Fatal("Create was not called")
	}
	if got.ID == "" {
		t.Error("user ID should be assigned")
	}
	if got.Username != "ana" {
		t.Errorf("username = %q, want %q", got.Username, "ana")
	}
	if got.PasswordHash == "" || got.PasswordHash == "long-enough-password" {
		t.Error("password must be stored as a hash")
	}
}

func TestRegister_NormalizesUsernameAndEmail(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestService(repo)

	input := validRegisterInput()
	input.Username = "  Ana_01  "
	input.Email = "  ANA@Example.COM "

	got, err := svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got.Username != "ana_01" {
		t.Errorf("username = %q, want lowercased %q", got.Username, "ana_01")
	}
	if got.Email != "ana@example.com" {
		t.Errorf("email = %q, want lowercased %q", got.Email, "ana@example.com")
	}
}

func TestRegister_SanitizesFullName(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestService(repo)

	input := validRegisterInput()
	input.FullName = `Ana <script>alert('x')</script>Test`

	got, err := svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got.FullName != "Ana Test" {
		t.Errorf("fullName = %q, want sanitized %q", got.FullName, "Ana Test")
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"ユーザー名に記号", func(in *RegisterInput) { in.Username = "ana!" }},
		{"ユーザー名が短すぎる", func(in *RegisterInput) { in.Username = "ab" }},
		{"メールアドレス形式不正", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"表示名が空", func(in *RegisterInput) { in.FullName = "   " }},
		{"表示名がタグのみ", func(in *RegisterInput) { in.FullName = "<script>x</script>" }},
		{"パスワードが短い", func(in *RegisterInput) { in.Password = "short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRegisterInput()
			tt.mutate(&input)
			_, err := svc.Register(context.Background(), input)
			expectAPIErrorCode(t, err, model.ErrCodeValidation)
		})
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: "other", Username: username}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), validRegisterInput())
	expectAPIErrorCode(t, err, model.ErrCodeUsernameTaken)
}

func TestRegister_EmailTaken(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "other", Email: email}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Register(context.Background(), validRegisterInput())
	expectAPIErrorCode(t, err, model.ErrCodeEmailTaken)
}

func TestGetByID_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.GetByID(context.Background(), "ghost")
	expectAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestGetByID_Found(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Username: "ana"}, nil
		},
	}
	svc := newTestService(repo)

	got, err := svc.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "ana" {
		t.Errorf("username = %q, want %q", got.Username, "ana")
	}
}

func TestUpdateDetails_BothEmpty_ValidationError(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.UpdateDetails(context.Background(), "user-1", "", "")
	expectAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestUpdateDetails_OmittedFieldKeepsCurrentValue(t *testing.T) {
	current := &model.User{
		ID:       "user-1",
		Username: "ana",
		Email:    "ana@example.com",
		FullName: "Ana Test",
	}
	var gotFullName, gotEmail string
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return current, nil
		},
		updateDetailsFn: func(ctx context.Context, id, fullName, email string) (*model.User, error) {
			gotFullName, gotEmail = fullName, email
			return &model.User{ID: id, FullName: fullName, Email: email}, nil
		},
	}
	svc := newTestService(repo)

	// 表示名のみ更新、メールアドレスは現状維持
	_, err := svc.UpdateDetails(context.Background(), "user-1", "Ana Renamed", "")
	if err != nil {
		t.Fatalf("UpdateDetails() error = %v", err)
	}
	if gotFullName != "Ana Renamed" {
		t.Errorf("fullName = %q, want %q", gotFullName, "Ana Renamed")
	}
	if gotEmail != "ana@example.com" {
		t.Errorf("email = %q, want current value retained", gotEmail)
	}
}

func TestUpdateDetails_EmailTakenByOther(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "ana@example.com", FullName: "Ana"}, nil
		},
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "someone-else", Email: email}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.UpdateDetails(context.Background(), "user-1", "", "taken@example.com")
	expectAPIErrorCode(t, err, model.ErrCodeEmailTaken)
}

func TestUpdateDetails_UnknownUser_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.UpdateDetails(context.Background(), "ghost", "New Name", "")
	expectAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestSetAvatarURL_Success(t *testing.T) {
	var gotURL string
	repo := &mockUserRepo{
		updateAvatarFn: func(ctx context.Context, id, url string) (*model.User, error) {
			gotURL = url
			return &model.User{ID: id, AvatarURL: url}, nil
		},
	}
	svc := newTestService(repo)

	updated, err := svc.SetAvatarURL(context.Background(), "user-1", "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("SetAvatarURL() error = %v", err)
	}
	if gotURL != "https://cdn.example.com/a.png" {
		t.Errorf("url = %q, want stored URL", gotURL)
	}
	if updated.AvatarURL != gotURL {
		t.Error("updated user should carry the new avatar URL")
	}
}

func TestSetAvatarURL_EmptyURL_ValidationError(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.SetAvatarURL(context.Background(), "user-1", "")
	expectAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestSetCoverImageURL_UnknownUser_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.SetCoverImageURL(context.Background(), "ghost", "https://cdn.example.com/c.png")
	expectAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}
