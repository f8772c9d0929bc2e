package fat32

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	var p Path
	assert.True(t, p.IsRoot())
	assert.Equal(t, "/", p.String())
	_, ok := p.Current()
	assert.False(t, ok)
	assert.False(t, p.Leave(), "leaving the root")

	docs := FileEntry{ShortName: "DOCS", IsDirectory: true, FirstCluster: 4}
	sub := FileEntry{ShortName: "SUB~1", LongName: "sub dir", IsDirectory: true, FirstCluster: 9}

	p.Enter(docs)
	p.Enter(sub)
	p.SetContent([]FileEntry{{ShortName: "A.TXT"}}, 3)
	assert.False(t, p.IsRoot())
	assert.Equal(t, "/DOCS/sub dir", p.String())
	assert.Equal(t, 3, p.FreeSlots())
	assert.Len(t, p.Content(), 1)

	current, ok := p.Current()
	assert.True(t, ok)
	assert.Equal(t, sub, current)

	crumbs := p.Breadcrumb()
	assert.Equal(t, []FileEntry{docs, sub}, crumbs)
	crumbs[0].ShortName = "CHANGED"
	assert.Equal(t, "/DOCS/sub dir", p.String(), "breadcrumb must be a copy")

	assert.True(t, p.Leave())
	assert.Equal(t, "/DOCS", p.String())
	assert.True(t, p.Leave())
	assert.True(t, p.IsRoot())
}
