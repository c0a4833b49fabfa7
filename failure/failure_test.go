package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error is fatal", errors.New("boom"), Fatal},
		{"direct", New(ConfigMisuse, "guild cache"), ConfigMisuse},
		{"wrapped", fmt.Errorf("stage: %w", New(BadCredential, "dsn")), BadCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(UserNotPrime, ""))

	assert.True(t, Is(err, UserNotPrime))
	assert.False(t, Is(err, GuildNotPrime))
	assert.True(t, errors.Is(err, New(UserNotPrime, "other message")))
	assert.False(t, errors.Is(err, New(NotPrime, "")))
}

func TestIsWalksChain(t *testing.T) {
	err := Wrap(Fatal, fmt.Errorf("stage: %w", New(ConfigMisuse, "x")), "outer")

	assert.True(t, Is(err, Fatal))
	assert.True(t, Is(err, ConfigMisuse))
	assert.False(t, Is(err, BadCredential))
	assert.Equal(t, Fatal, KindOf(err))
}

func TestDefaultMessages(t *testing.T) {
	for _, k := range []Kind{NotPrime, GuildNotPrime, UserNotPrime} {
		assert.Equal(t, primeMessage, New(k, "").Message)
		assert.True(t, k.Prime())
		assert.True(t, k.CheckFailure())
	}
	assert.Equal(t, "custom", New(NotPrime, "custom").Message)
	assert.False(t, ConfigMisuse.CheckFailure())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("invalid scheme")
	err := Wrap(BadCredential, cause, "invalid sentry DSN provided")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad credential: invalid sentry DSN provided: invalid scheme", err.Error())
	assert.Equal(t, "invalid sentry DSN provided", Message(err))
}
