package opdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veesix-networks/cidrd/pkg/opdb"
	"github.com/veesix-networks/cidrd/pkg/opdb/memory"
)

type fakeProvider struct {
	ns       string
	restored int
	err      error
}

func (p *fakeProvider) Namespaces() []string { return []string{p.ns} }

func (p *fakeProvider) Restore(ctx context.Context, store opdb.Store) error {
	if p.err != nil {
		return p.err
	}
	return store.Load(ctx, p.ns, func(string, []byte) error {
		p.restored++
		return nil
	})
}

func TestRestoreAll(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Put(ctx, "a", "k1", nil))
	require.NoError(t, store.Put(ctx, "a", "k2", nil))

	p := &fakeProvider{ns: "a"}
	reg := opdb.NewProviderRegistry()
	reg.Register(p)

	require.NoError(t, reg.RestoreAll(ctx, store))
	assert.Equal(t, 2, p.restored)
}

func TestRestoreAllStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	reg := opdb.NewProviderRegistry()
	reg.Register(&fakeProvider{ns: "a", err: boom})
	second := &fakeProvider{ns: "b"}
	reg.Register(second)

	err := reg.RestoreAll(context.Background(), memory.New())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, second.restored)
}
