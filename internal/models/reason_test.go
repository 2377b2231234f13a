package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReasonAliases(t *testing.T) {
	aliases, err := ParseReasonAliases(" Kur = sickness ,Elternzeit=UNPAID")
	require.NoError(t, err)
	assert.Equal(t, map[string]Reason{"kur": ReasonSickness, "elternzeit": ReasonUnpaid}, aliases)

	empty, err := ParseReasonAliases("  ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseReasonAliasesRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"Kur",
		"=sickness",
		"Kur=sickness,",
		"Kur=spa",
		"Kur=sickness;Urlaub=vacation",
	} {
		_, err := ParseReasonAliases(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrConfiguration), in)

		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), in)
	}
}

func TestReasonTable(t *testing.T) {
	table := NewReasonTable(map[string]Reason{"Home  Office": ReasonOther})

	r, ok := table.Resolve("  KRANK ")
	require.True(t, ok)
	assert.Equal(t, ReasonSickness, r)

	r, ok = table.Resolve("home office")
	require.True(t, ok)
	assert.Equal(t, ReasonOther, r)

	_, ok = table.Resolve("spa")
	assert.False(t, ok)

	assert.NotEqual(t, NewReasonTable(nil).Fingerprint(), table.Fingerprint())
}

func TestParseReason(t *testing.T) {
	r, err := ParseReason(" Vacation ")
	require.NoError(t, err)
	assert.Equal(t, ReasonVacation, r)
	assert.Equal(t, 1, r.Index())

	_, err = ParseReason("krank")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, -1, Reason("krank").Index())
}
