package cmd

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	line, err := parseLine("2000-v7:CR:250")
	require.NoError(t, err)
	assert.Equal(t, "2000-v7", line.AccountCode)
	assert.True(t, line.Credit.Equal(decimal.RequireFromString("250")))
	assert.True(t, line.Debit.IsZero())

	line, err = parseLine("5100:debit:99.995")
	require.NoError(t, err)
	assert.Equal(t, "100", line.Debit.String())

	for _, bad := range []string{"5100:dr", "5100:xx:10", "5100:dr:abc", "5100:dr:-5"} {
		_, err := parseLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDay("2025-06-30")
	require.NoError(t, err)
	assert.Equal(t, 30, d.Day())

	_, err = parseDay("30/06/2025")
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"}, {"accrue"}, {"reverse"}, {"pay"}, {"credit", "apply"}, {"deposit", "forfeit"},
		{"outstanding"}, {"lease", "create"}, {"lease", "list"}, {"lease", "get"},
		{"entry", "list"}, {"entry", "get"}, {"entry", "create"}, {"entry", "bill"},
		{"account", "list"}, {"account", "create"}, {"account", "deactivate"},
		{"report", "income"}, {"report", "balance"}, {"report", "trial"}, {"report", "monthly"}, {"report", "audit"},
		{"tui"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name(), path)
	}
}
