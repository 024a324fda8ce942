package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/ledger"
	"github.com/simonvc/rentledger/internal/logger"
	"github.com/simonvc/rentledger/internal/store"
)

func TestEmbeddedServerKeepsTerminalClean(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stderr, prevLog, prevCfg := os.Stderr, zlog, cfg
	os.Stderr = w
	t.Cleanup(func() { os.Stderr, zlog, cfg = stderr, prevLog, prevCfg })

	// the process logger writes to the redirected stderr
	zlog, err = logger.New("debug")
	require.NoError(t, err)
	cfg.Ledger.CashAccount = ledger.CodeCash

	captured := make(chan []byte, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		captured <- buf.Bytes()
	}()

	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer st.Close()

	srv, publisher := embeddedServer(st)
	defer publisher.Close()
	hs := httptest.NewServer(srv.Handler())

	c := client.New(hs.URL)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	_, err = c.CreateEntry(ctx, client.ManualEntry{
		Date:        "2025-07-01",
		Description: "opening float",
		Lines: []client.EntryLine{
			{AccountCode: ledger.CodeCash, Debit: decimal.NewFromInt(50)},
			{AccountCode: ledger.CodeRentalIncome, Credit: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)
	_, err = c.CreateAccruals(ctx, time.July, 2025)
	require.NoError(t, err)
	hs.Close()

	require.NoError(t, w.Close())
	assert.Empty(t, string(<-captured))
}
