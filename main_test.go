package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxim-sld/meditation-bot/internal/config"
)

func TestOpenStoreMemoryIsSeeded(t *testing.T) {
	ctx := context.Background()
	st, err := openStore(ctx, &config.Config{StoreDriver: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Ping(ctx))
	plans, err := st.ListActivePlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	items, err := st.ListContentItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}
