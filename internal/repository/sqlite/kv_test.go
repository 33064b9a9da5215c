package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/challengeties/rewards/internal/errs"
)

func openKV(t *testing.T) *KV {
	t.Helper()
	kv, err := Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestKV_SetGetOverwrite(t *testing.T) {
	kv := openKV(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	require.NoError(t, kv.Set(ctx, "k", "v2"))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", v)
}

func TestKV_RemoveMany(t *testing.T) {
	kv := openKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", "1"))
	require.NoError(t, kv.Set(ctx, "b", "2"))
	require.NoError(t, kv.Remove(ctx, "a", "b", "missing"))

	for _, k := range []string{"a", "b"} {
		_, err := kv.Get(ctx, k)
		require.ErrorIs(t, err, errs.ErrNotFound)
	}
}

func TestKV_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	kv, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "referral.pending.v2", `{"v":2}`))
	require.NoError(t, kv.Close())

	kv, err = Open(path)
	require.NoError(t, err)
	defer kv.Close()
	v, err := kv.Get(ctx, "referral.pending.v2")
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, v)
}

func TestKV_TakeReturnsAndRemoves(t *testing.T) {
	kv := openKV(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "a", "1"))
	require.NoError(t, kv.Set(ctx, "b", "2"))
	require.NoError(t, kv.Set(ctx, "keep", "3"))

	got, err := kv.Take(ctx, "a", "b", "missing")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, got)

	again, err := kv.Take(ctx, "a", "b")
	require.NoError(t, err)
	require.Empty(t, again)

	v, err := kv.Get(ctx, "keep")
	require.NoError(t, err)
	require.Equal(t, "3", v)

	none, err := kv.Take(ctx)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestKV_TakeAcrossHandlesHandsOutOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()
	handles := make([]*KV, 2)
	for i := range handles {
		kv, err := Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = kv.Close() })
		handles[i] = kv
	}

	for round := 0; round < 25; round++ {
		require.NoError(t, handles[0].Set(ctx, "referral.pending.v2", "R1"))
		var g errgroup.Group
		got := make([]map[string]string, len(handles))
		for i, kv := range handles {
			i, kv := i, kv
			g.Go(func() error {
				m, err := kv.Take(ctx, "referral.pending.v2", "referrerId")
				got[i] = m
				return err
			})
		}
		require.NoError(t, g.Wait())
		require.Equal(t, 1, len(got[0])+len(got[1]), "round %d", round)
	}
}
