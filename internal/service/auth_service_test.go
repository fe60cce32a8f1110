package service

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfix/resolve-service/internal/domain"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

var referralCodePattern = regexp.MustCompile(`^[A-Z]{1,4}[0-9A-F]{6}$`)

func validRegistration() RegisterInput {
	return RegisterInput{
		Name:     "Jane Doe",
		Email:    "Jane@City.Example",
		Username: "Jane_D",
		Password: "correct-horse",
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, token, err := h.auth.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCitizen, user.Role)
	assert.Equal(t, "jane@city.example", user.Email)
	require.NotNil(t, user.Username)
	assert.Equal(t, "jane_d", *user.Username)
	assert.Equal(t, domain.ReferralStatusNone, user.ReferralStatus)
	assert.Regexp(t, referralCodePattern, user.ReferralCode)
	assert.Equal(t, "JANE", user.ReferralCode[:4])
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	claims, err := h.auth.TokenManager().ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, domain.RoleCitizen, claims.Role)
}

func TestRegister_WithReferralCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer, _, err := h.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	in := RegisterInput{
		Name:         "Sam",
		Email:        "sam@city.example",
		Username:     "sam",
		Password:     "password123",
		ReferralCode: " " + strings.ToLower(referrer.ReferralCode) + " ",
	}
	user, _, err := h.auth.Register(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, user.ReferredBy)
	assert.Equal(t, referrer.ID, *user.ReferredBy)
	assert.Equal(t, domain.ReferralStatusPending, user.ReferralStatus)

	in = RegisterInput{Name: "Kim", Email: "kim@city.example", Username: "kim", Password: "password123", ReferralCode: "NOPE000000"}
	_, _, err = h.auth.Register(ctx, in)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRegister_Conflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, err := h.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	dupEmail := validRegistration()
	dupEmail.Username = "someone_else"
	_, _, err = h.auth.Register(ctx, dupEmail)
	require.True(t, apperrors.Is(err, apperrors.CodeConflict))
	assert.Equal(t, "email", apperrors.ToDomainError(err).Details["field"])

	dupUsername := validRegistration()
	dupUsername.Email = "other@city.example"
	dupUsername.Username = "JANE_D"
	_, _, err = h.auth.Register(ctx, dupUsername)
	require.True(t, apperrors.Is(err, apperrors.CodeConflict))
	assert.Equal(t, "username", apperrors.ToDomainError(err).Details["field"])

	// the losing account was rolled back with its username claim
	_, err = h.store.Users().GetByEmail(ctx, "other@city.example")
	assert.Error(t, err)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := map[string]func(*RegisterInput){
		"bad email":      func(in *RegisterInput) { in.Email = "not-an-email" },
		"display email":  func(in *RegisterInput) { in.Email = "Jane <jane@city.example>" },
		"missing name":   func(in *RegisterInput) { in.Name = "  " },
		"short username": func(in *RegisterInput) { in.Username = "jd" },
		"odd username":   func(in *RegisterInput) { in.Username = "jane.doe" },
		"short password": func(in *RegisterInput) { in.Password = "short" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validRegistration()
			mutate(&in)
			_, _, err := h.auth.Register(ctx, in)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "%v", err)
		})
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	registered, _, err := h.auth.Register(ctx, validRegistration())
	require.NoError(t, err)

	user, token, err := h.auth.Login(ctx, " JANE@city.example ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, registered.ID, token.SubjectID)
	assert.NotEmpty(t, token.Value)

	_, _, err = h.auth.Login(ctx, "jane@city.example", "wrong-horse")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	_, _, err = h.auth.Login(ctx, "nobody@city.example", "correct-horse")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
}

func TestNewReferralCode(t *testing.T) {
	assert.Regexp(t, referralCodePattern, newReferralCode("Ôscar O'Neil"))
	assert.Equal(t, "SCAR", newReferralCode("Ôscar")[:4])
	assert.Equal(t, "USER", newReferralCode("李雷")[:4])
	assert.Equal(t, "AL", newReferralCode("al")[:2])
	assert.NotEqual(t, newReferralCode("Jane"), newReferralCode("Jane"))
}
