package coupon

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput_Check(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{name: "percentage ok", in: Input{Code: "A", Kind: KindPercentage, Value: d("100")}},
		{name: "fixed ok", in: Input{Code: "A", Kind: KindFixed, Value: d("5000")}},
		{name: "missing code", in: Input{Kind: KindFixed, Value: d("1")}, wantErr: true},
		{name: "unknown kind", in: Input{Code: "A", Kind: "free", Value: d("1")}, wantErr: true},
		{name: "percentage over 100", in: Input{Code: "A", Kind: KindPercentage, Value: d("100.01")}, wantErr: true},
		{name: "negative value", in: Input{Code: "A", Kind: KindFixed, Value: d("-1")}, wantErr: true},
		{name: "negative minimum", in: Input{Code: "A", Kind: KindFixed, Value: d("1"), MinOrder: d("-5")}, wantErr: true},
		{name: "negative max uses", in: Input{Code: "A", Kind: KindFixed, Value: d("1"), MaxUses: intPtr(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Check()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCoupon)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestService_Create(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), Input{
		Code:    " spring ",
		Kind:    KindPercentage,
		Value:   d("15"),
		MaxUses: intPtr(0),
		Active:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "SPRING", c.Code)
	assert.Nil(t, c.MaxUses, "zero cap is stored as unlimited")
	assert.Equal(t, 0, c.UsedCount)
	assert.NotEmpty(t, c.ID)
	assert.Same(t, c, repo.created)
}

func TestService_CreateDuplicate(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = ErrDuplicateCode
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Input{Code: "DUP", Kind: KindFixed, Value: d("1")})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestService_UpdateKeepsUsedCount(t *testing.T) {
	repo := newMockRepo(&Coupon{ID: "c1", Code: "OLD", Kind: KindFixed, Value: d("5"), UsedCount: 7, Active: true})
	svc := NewService(repo)

	c, err := svc.Update(context.Background(), "c1", Input{Code: "new", Kind: KindPercentage, Value: d("10"), MaxUses: intPtr(20)})
	require.NoError(t, err)

	assert.Equal(t, "NEW", c.Code)
	assert.Equal(t, 7, c.UsedCount)
	assert.False(t, c.Active)
	require.NotNil(t, repo.updated)
	assert.Equal(t, 20, *repo.updated.MaxUses)
}

func TestService_UpdateMissing(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Update(context.Background(), "nope", Input{Code: "X", Kind: KindFixed, Value: d("1")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_GenerateCode(t *testing.T) {
	svc := NewService(newMockRepo())
	svc.rand = bytes.NewReader([]byte{0, 1, 25, 26, 35, 36, 61, 71})

	code, err := svc.GenerateCode()
	require.NoError(t, err)
	assert.Equal(t, "ABZ09AZ9", code)
}

func TestGenerateCode_Alphabet(t *testing.T) {
	svc := NewService(newMockRepo())
	for range 50 {
		code, err := svc.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q", r)
		}
	}
}
