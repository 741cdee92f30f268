package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/querydesk/types"
)

func TestNewIsEmpty(t *testing.T) {
	ctx := New(nil)
	snap := ctx.Snapshot()

	require.NotNil(t, snap)
	assert.True(t, snap.Empty())
	assert.False(t, snap.HasDatasets())
	assert.False(t, snap.HasDocuments())
	assert.Equal(t, types.HandlerKind(""), snap.LastHandler)
}

func TestRegisterAndUnregister(t *testing.T) {
	ctx := New(nil)

	ctx.Register("sales.csv", types.SourceTabular)
	ctx.Register("paper.pdf", types.SourceDocument)

	snap := ctx.Snapshot()
	assert.Equal(t, []string{"sales.csv"}, snap.Datasets)
	assert.Equal(t, []string{"paper.pdf"}, snap.Documents)

	ctx.Unregister("sales.csv")
	snap = ctx.Snapshot()
	assert.False(t, snap.HasDatasets())
	assert.True(t, snap.HasDocuments())

	// 重复移除是空操作
	ctx.Unregister("sales.csv")
	assert.True(t, ctx.Snapshot().HasDocuments())
}

func TestSnapshotIsImmutable(t *testing.T) {
	ctx := New(nil)
	ctx.Register("a.pdf", types.SourceDocument)

	before := ctx.Snapshot()
	ctx.Register("b.pdf", types.SourceDocument)

	// 旧快照不受后续修改影响
	assert.Equal(t, []string{"a.pdf"}, before.Documents)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ctx.Snapshot().Documents)
}

func TestClear(t *testing.T) {
	ctx := New(nil)
	ctx.Register("sales.csv", types.SourceTabular)
	ctx.SetLastHandler(types.HandlerTabular)

	ctx.Clear()

	snap := ctx.Snapshot()
	assert.True(t, snap.Empty())
	assert.Equal(t, types.HandlerKind(""), snap.LastHandler)
}

func TestConcurrentMutationsAndReads(t *testing.T) {
	ctx := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := fmt.Sprintf("doc-%d-%d", n, j)
				ctx.Register(id, types.SourceDocument)
				ctx.SetLastHandler(types.HandlerResearch)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := ctx.Snapshot()
				// 快照内部必须一致：Documents 与 Sources 同源
				assert.Equal(t, len(snap.Sources), len(snap.Documents)+len(snap.Datasets))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ctx.Snapshot().Documents, 800)
}
