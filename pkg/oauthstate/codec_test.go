package oauthstate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/redis"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type failingStore struct{}

func (failingStore) ConsumeOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestCodec(t *testing.T, now func() time.Time) *Codec {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redis.NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), testLogger())
	codec, err := NewCodec(Config{Secret: testSecret, TTL: 10 * time.Minute, Now: now}, store, testLogger())
	require.NoError(t, err)
	return codec
}

func TestNewCodec_Validation(t *testing.T) {
	_, err := NewCodec(Config{Secret: "short"}, failingStore{}, testLogger())
	assert.Error(t, err)

	_, err = NewCodec(Config{Secret: testSecret}, nil, testLogger())
	assert.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t, nil)
	ctx := context.Background()

	state, err := codec.Encode(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(state, "."), 3)

	userID, err := codec.Decode(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestCodec_Encode_RequiresUser(t *testing.T) {
	codec := newTestCodec(t, nil)
	_, err := codec.Encode(context.Background(), " ")
	assert.Error(t, err)
}

func TestCodec_Decode_RejectsReplay(t *testing.T) {
	codec := newTestCodec(t, nil)
	ctx := context.Background()

	state, err := codec.Encode(ctx, "user-1")
	require.NoError(t, err)

	_, err = codec.Decode(ctx, state)
	require.NoError(t, err)

	_, err = codec.Decode(ctx, state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCodec_Decode_RejectsExpired(t *testing.T) {
	issued := time.Now()
	clock := issued
	codec := newTestCodec(t, func() time.Time { return clock })
	ctx := context.Background()

	state, err := codec.Encode(ctx, "user-1")
	require.NoError(t, err)

	clock = issued.Add(11 * time.Minute)
	_, err = codec.Decode(ctx, state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCodec_Decode_RejectsTampering(t *testing.T) {
	codec := newTestCodec(t, nil)
	ctx := context.Background()

	state, err := codec.Encode(ctx, "user-1")
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		Subject:   "user-2",
		ID:        "nonce",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	forgedState, err := forged.SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	parts := strings.Split(state, ".")
	require.Len(t, parts, 3)
	swapped := parts[0] + "." + strings.Split(forgedState, ".")[1] + "." + parts[2]

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}})
	noneState, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, bad := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"foreign secret": forgedState,
		"swapped claims": swapped,
		"alg none":       noneState,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(ctx, bad)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestCodec_Decode_RejectsWrongAudience(t *testing.T) {
	codec := newTestCodec(t, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{"somewhere-else"},
		Subject:   "user-1",
		ID:        "nonce-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	state, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCodec_Decode_StoreFailureIsNotInvalidState(t *testing.T) {
	codec, err := NewCodec(Config{Secret: testSecret}, failingStore{}, testLogger())
	require.NoError(t, err)

	state, err := codec.Encode(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), state)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidState)
}
