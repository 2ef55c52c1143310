package validator

import (
	"errors"
	"testing"

	playground "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/types"
)

func TestCheck_FirstFailureWins(t *testing.T) {
	v := New()
	v.Check(false, "title", "must be provided")
	v.Check(false, "title", "must be short")
	v.Check(true, "author", "never recorded")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{"title": "must be provided"}, v.Errors)
}

func TestErr(t *testing.T) {
	v := New()
	require.NoError(t, v.Err())

	v.AddError("isbn", "must contain only digits")
	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must contain only digits", ve.Fields["isbn"])
}

func TestStruct_Registration(t *testing.T) {
	tests := []struct {
		name   string
		reg    types.Registration
		errors map[string]string
	}{
		{
			name: "valid",
			reg: types.Registration{Email: "a@x.com", Username: "alice", Password: "secret1",
				FirstName: "A", LastName: "L"},
			errors: map[string]string{},
		},
		{
			name: "everything missing",
			reg:  types.Registration{},
			errors: map[string]string{
				"email":     "must be provided",
				"username":  "must be provided",
				"password":  "must be provided",
				"firstName": "must be provided",
				"lastName":  "must be provided",
			},
		},
		{
			name: "malformed",
			reg: types.Registration{Email: "not-an-email", Username: "bad name", Password: "12345",
				FirstName: "A", LastName: "L"},
			errors: map[string]string{
				"email":    "must be a valid email address",
				"username": "may contain only letters, digits and underscores",
				"password": "must be at least 6 characters long",
			},
		},
		{
			name: "short username",
			reg: types.Registration{Email: "a@x.com", Username: "al", Password: "secret1",
				FirstName: "A", LastName: "L"},
			errors: map[string]string{"username": "must be at least 3 characters long"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Struct(tt.reg)
			assert.Equal(t, tt.errors, v.Errors)
		})
	}
}

func TestStruct_BookFields(t *testing.T) {
	rating := 5.5
	pages := 0

	v := New()
	v.Struct(types.BookFields{
		Title:      "Title",
		Author:     "Author",
		ISBN:       "97801-123",
		CoverImage: "ftp://example.com/cover.png",
		Rating:     &rating,
		Pages:      &pages,
	})

	assert.Equal(t, map[string]string{
		"isbn":       "must be exactly 13 characters long",
		"coverImage": "must be an http or https URL",
		"rating":     "must be less than or equal to 5",
		"pages":      "must be at least 1",
	}, v.Errors)
}

func TestStruct_ISBNDigitsOnly(t *testing.T) {
	v := New()
	v.Struct(types.BookFields{Title: "T", Author: "A", ISBN: "97801234567-9"})
	assert.Equal(t, map[string]string{"isbn": "must contain only digits"}, v.Errors)
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("john@example.com", EmailRX))
	assert.False(t, Matches("john@example", EmailRX))
	assert.False(t, Matches("jo hn@example.com", EmailRX))
	assert.True(t, Matches("user_01", UsernameRX))
	assert.False(t, Matches("user-01", UsernameRX))
}

func TestCustomTagsAreRegistered(t *testing.T) {
	var v *playground.Validate
	require.NotPanics(t, func() { v = newStructValidator() })

	assert.NoError(t, v.Var("john@example.com", "emailaddr"))
	assert.Error(t, v.Var("user_01", "emailaddr"))
	assert.NoError(t, v.Var("user_01", "username"))
	assert.Error(t, v.Var("john@example.com", "username"))
}
