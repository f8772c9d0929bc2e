package fat32

import "strings"

// Path is the navigation state of a mounted driver: the directories entered from the root, the
// decoded entries of the current directory and its number of free records.
type Path struct {
	stack     []FileEntry
	content   []FileEntry
	freeSlots int
}

// Enter pushes a directory. The caller replaces the content afterwards.
func (p *Path) Enter(dir FileEntry) {
	p.stack = append(p.stack, dir)
}

// Leave pops the current directory. It returns false if the path already is at the root.
func (p *Path) Leave() bool {
	if len(p.stack) == 0 {
		return false
	}
	p.stack = p.stack[:len(p.stack)-1]
	return true
}

// Current returns the entry of the current directory. At the root there is none.
func (p *Path) Current() (FileEntry, bool) {
	if len(p.stack) == 0 {
		return FileEntry{}, false
	}
	return p.stack[len(p.stack)-1], true
}

func (p *Path) IsRoot() bool {
	return len(p.stack) == 0
}

// SetContent replaces the listing of the current directory.
func (p *Path) SetContent(entries []FileEntry, freeSlots int) {
	p.content = entries
	p.freeSlots = freeSlots
}

func (p *Path) Content() []FileEntry {
	return p.content
}

func (p *Path) FreeSlots() int {
	return p.freeSlots
}

// Breadcrumb returns a copy of the directories from the root to the current one.
func (p *Path) Breadcrumb() []FileEntry {
	return append([]FileEntry(nil), p.stack...)
}

// String returns the path in slash notation, e.g. "/DOCS/sub".
func (p *Path) String() string {
	if len(p.stack) == 0 {
		return "/"
	}
	names := make([]string, len(p.stack))
	for i, e := range p.stack {
		names[i] = e.Name()
	}
	return "/" + strings.Join(names, "/")
}
