package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgauth/internal/autherr"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

var testNow = time.Unix(1767225600, 0) // 2026-01-01T00:00:00Z

func signed(d WidgetData) WidgetData {
	d.Hash = ComputeHash(testBotToken, DataCheckString(d))
	return d
}

func newTestValidator() *Validator {
	return NewValidator(testBotToken, func() time.Time { return testNow })
}

func TestDataCheckString(t *testing.T) {
	tests := []struct {
		name string
		data WidgetData
		want string
	}{
		{
			name: "all fields sorted by key",
			data: WidgetData{
				ID: 42, FirstName: "John", LastName: "Doe", Username: "jdoe",
				PhotoURL: "https://t.me/i/userpic/320/jdoe.jpg", AuthDate: 1767225600,
			},
			want: "auth_date=1767225600\nfirst_name=John\nid=42\nlast_name=Doe\n" +
				"photo_url=https://t.me/i/userpic/320/jdoe.jpg\nusername=jdoe",
		},
		{
			name: "mandatory only",
			data: WidgetData{ID: 42, FirstName: "John", AuthDate: 1767225600},
			want: "auth_date=1767225600\nfirst_name=John\nid=42",
		},
		{
			name: "blank optional fields are skipped",
			data: WidgetData{ID: 42, FirstName: "John", LastName: "  ", Username: "", AuthDate: 1767225600},
			want: "auth_date=1767225600\nfirst_name=John\nid=42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DataCheckString(tt.data)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.HasSuffix(got, "\n"))
		})
	}
}

func TestComputeHash_KnownVector(t *testing.T) {
	h := ComputeHash("bot-token", "auth_date=1\nfirst_name=A\nid=1")
	assert.Equal(t, "d07d4ed4d31fe88486be2d249ab65c0b3f725e75ccba76848fa7bfac165b9816", h)
	assert.NotEqual(t, h, ComputeHash("other-token", "auth_date=1\nfirst_name=A\nid=1"))
}

func TestValidator_RoundTrip(t *testing.T) {
	v := newTestValidator()

	payloads := []WidgetData{
		{ID: 1, FirstName: "A", AuthDate: testNow.Unix()},
		{ID: 99, FirstName: "Иван", LastName: "Петров", Username: "ivan", AuthDate: testNow.Unix() - 600},
		{ID: 7, FirstName: "P", PhotoURL: "https://t.me/p.jpg", AuthDate: testNow.Unix() + 60},
	}

	for _, p := range payloads {
		d := signed(p)
		identity, err := v.Validate(d)
		require.NoError(t, err)
		assert.Equal(t, p.ID, identity.ID)
		assert.Equal(t, p.FirstName, identity.FirstName)
		assert.Nil(t, identity.ChatID)
	}
}

func TestValidator_UpperCaseHashAccepted(t *testing.T) {
	d := signed(WidgetData{ID: 1, FirstName: "A", AuthDate: testNow.Unix()})
	d.Hash = strings.ToUpper(d.Hash)

	_, err := newTestValidator().Validate(d)
	assert.NoError(t, err)
}

func TestValidator_SingleByteFlipRejected(t *testing.T) {
	v := newTestValidator()
	d := signed(WidgetData{ID: 42, FirstName: "John", Username: "jdoe", AuthDate: testNow.Unix()})

	for i := 0; i < len(d.Hash); i++ {
		flipped := []byte(d.Hash)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}

		tampered := d
		tampered.Hash = string(flipped)

		_, err := v.Validate(tampered)
		assert.ErrorIs(t, err, autherr.ErrInvalidTelegramAuth, "position %d", i)
	}
}

func TestValidator_TamperedFieldRejected(t *testing.T) {
	v := newTestValidator()
	d := signed(WidgetData{ID: 42, FirstName: "John", AuthDate: testNow.Unix()})

	d.ID = 43
	_, err := v.Validate(d)
	assert.ErrorIs(t, err, autherr.ErrInvalidTelegramAuth)
}

func TestValidator_Freshness(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		wantErr  error
		name     string
		authDate int64
	}{
		{name: "exactly one hour old", authDate: testNow.Add(-time.Hour).Unix()},
		{name: "too old", authDate: testNow.Add(-time.Hour - time.Second).Unix(), wantErr: ErrAuthDataTooOld},
		{name: "in the future", authDate: testNow.Add(time.Hour + time.Second).Unix(), wantErr: ErrAuthDataInFuture},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(signed(WidgetData{ID: 1, FirstName: "A", AuthDate: tt.authDate}))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, autherr.ErrInvalidTelegramAuth)
			assert.Equal(t, tt.wantErr.Error(), err.Error())
		})
	}
}

func TestValidator_NotConfigured(t *testing.T) {
	v := NewValidator("", func() time.Time { return testNow })

	_, err := v.Validate(signed(WidgetData{ID: 1, FirstName: "A", AuthDate: testNow.Unix()}))
	assert.ErrorIs(t, err, autherr.ErrServiceUnavailable)
}

func TestValidator_MissingFields(t *testing.T) {
	v := newTestValidator()

	_, err := v.Validate(WidgetData{FirstName: "A", AuthDate: testNow.Unix(), Hash: "ab"})
	assert.ErrorIs(t, err, autherr.ErrInvalidTelegramAuth)

	_, err = v.Validate(WidgetData{ID: 1, FirstName: "A", AuthDate: testNow.Unix()})
	assert.ErrorIs(t, err, autherr.ErrInvalidTelegramAuth)
}
