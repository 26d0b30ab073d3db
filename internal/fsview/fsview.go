// Package fsview is a read-only FUSE view over a TaskLens document: a
// Do/ directory listing tasks ranked by priority and a Balance/
// directory listing each root's credit standing (spec.md §4.7's
// "imported query surface", exposed as a filesystem instead of a
// library call). Grounded directly on the teacher's internal/fs and
// pkg/fuse node/inode/readdir pattern, narrowed to a read-only subset:
// no Lookup-time mutation, no writable trigger files, since nothing in
// the TaskLens surface needs a filesystem write path.
package fsview

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tasklens/tasklens/internal/balance"
	"github.com/tasklens/tasklens/internal/cache"
	"github.com/tasklens/tasklens/internal/priority"
	"github.com/tasklens/tasklens/internal/store"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
	"github.com/tasklens/tasklens/internal/visibility"
)

// TaskLensFS is the FUSE filesystem root's backing state: a read handle
// onto one document's store, plus the memoized projection layer shared
// with the CLI.
type TaskLensFS struct {
	store       *store.Store
	docID       string
	projections *cache.Projections
	server      *fuse.Server
	uid, gid    uint32
}

// New returns a TaskLensFS reading docID out of s, memoizing Prioritize
// and Balance results through projections.
func New(s *store.Store, docID string, projections *cache.Projections, uid, gid uint32) *TaskLensFS {
	return &TaskLensFS{store: s, docID: docID, projections: projections, uid: uid, gid: gid}
}

func (t *TaskLensFS) SetServer(s *fuse.Server) { t.server = s }

// snapshot loads the current document and revision, and returns the
// memoized priority/balance projections over it.
func (t *TaskLensFS) snapshot(ctx context.Context) (*tlmodel.DocumentState, []priority.ComputedTask, balance.Data, error) {
	d, rev, ok, err := t.store.Load(ctx, t.docID)
	if err != nil {
		return nil, nil, balance.Data{}, err
	}
	if !ok {
		d = tlmodel.NewDocumentState()
		rev = 0
	}
	now := tltime.Now()
	tasks := t.projections.Prioritize(d, rev, visibility.ViewFilter{}, priority.Options{Mode: priority.ModeDoList, Now: now})
	bal := t.projections.Balance(d, rev, now)
	return d, tasks, bal, nil
}

// BaseNode gives every node file ownership and a back-reference to the
// filesystem, matching the teacher's BaseNode embedding convention.
type BaseNode struct {
	fs.Inode
	tlfs *TaskLensFS
}

func (b *BaseNode) setOwner(out *fuse.Attr) {
	out.Uid = b.tlfs.uid
	out.Gid = b.tlfs.gid
}

// RootNode is the filesystem root: Do/, Balance/, README.md.
type RootNode struct{ BaseNode }

var (
	_ fs.NodeReaddirer = (*RootNode)(nil)
	_ fs.NodeLookuper  = (*RootNode)(nil)
	_ fs.NodeGetattrer = (*RootNode)(nil)
)

func (r *RootNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	out.Mode = 0o555 | syscall.S_IFDIR
	r.setOwner(&out.Attr)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (r *RootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: "README.md", Mode: syscall.S_IFREG},
		{Name: "Do", Mode: syscall.S_IFDIR},
		{Name: "Balance", Mode: syscall.S_IFDIR},
	}
	return fs.NewListDirStream(entries), 0
}

func (r *RootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	now := time.Now()
	switch name {
	case "README.md":
		node := &ReadmeNode{BaseNode: BaseNode{tlfs: r.tlfs}}
		content := node.content()
		out.Attr.Mode = 0o444 | syscall.S_IFREG
		out.Attr.Size = uint64(len(content))
		r.setOwner(&out.Attr)
		out.Attr.SetTimes(&now, &now, &now)
		return r.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFREG}), 0
	case "Do":
		node := &DoNode{BaseNode: BaseNode{tlfs: r.tlfs}}
		out.Attr.Mode = 0o555 | syscall.S_IFDIR
		r.setOwner(&out.Attr)
		out.Attr.SetTimes(&now, &now, &now)
		return r.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
	case "Balance":
		node := &BalanceNode{BaseNode: BaseNode{tlfs: r.tlfs}}
		out.Attr.Mode = 0o555 | syscall.S_IFDIR
		r.setOwner(&out.Attr)
		out.Attr.SetTimes(&now, &now, &now)
		return r.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
	default:
		return nil, syscall.ENOENT
	}
}

// ReadmeNode is a static usage note, generated fresh on every read since
// it is tiny and never needs caching.
type ReadmeNode struct{ BaseNode }

var (
	_ fs.NodeGetattrer = (*ReadmeNode)(nil)
	_ fs.NodeOpener    = (*ReadmeNode)(nil)
	_ fs.NodeReader    = (*ReadmeNode)(nil)
)

func (r *ReadmeNode) content() []byte {
	return []byte(`TaskLens read-only view.

Do/<rank>-<title>.md       current priority order (spec.md mode=DoList)
Balance/<root>.md          per-root credit standing (spec.md §4.6)

Directory listings are recomputed on every read; nothing here is writable.
`)
}

func (r *ReadmeNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	content := r.content()
	out.Mode = 0o444 | syscall.S_IFREG
	out.Size = uint64(len(content))
	r.setOwner(&out.Attr)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (r *ReadmeNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (r *ReadmeNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return readAt(r.content(), dest, off), 0
}

// DoNode is /Do: one file per visible task, named by its rank in
// priority order.
type DoNode struct{ BaseNode }

var (
	_ fs.NodeReaddirer = (*DoNode)(nil)
	_ fs.NodeLookuper  = (*DoNode)(nil)
)

func (d *DoNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	_, tasks, _, err := d.tlfs.snapshot(ctx)
	if err != nil {
		log.Printf("[fsview] Do readdir: %v", err)
		return nil, syscall.EIO
	}

	entries := make([]fuse.DirEntry, 0, len(tasks))
	for i, t := range tasks {
		entries = append(entries, fuse.DirEntry{Name: doFilename(i+1, t), Mode: syscall.S_IFREG})
	}
	return fs.NewListDirStream(entries), 0
}

func (d *DoNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, tasks, _, err := d.tlfs.snapshot(ctx)
	if err != nil {
		return nil, syscall.EIO
	}

	rank, ok := parseRank(name)
	if !ok || rank < 1 || rank > len(tasks) {
		return nil, syscall.ENOENT
	}
	task := tasks[rank-1]
	if doFilename(rank, task) != name {
		return nil, syscall.ENOENT
	}

	node := &TaskFileNode{BaseNode: BaseNode{tlfs: d.tlfs}, task: task, rank: rank}
	content := node.content()
	now := time.Now()
	out.Attr.Mode = 0o444 | syscall.S_IFREG
	out.Attr.Size = uint64(len(content))
	d.setOwner(&out.Attr)
	out.Attr.SetTimes(&now, &now, &now)
	return d.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFREG}), 0
}

func doFilename(rank int, t priority.ComputedTask) string {
	return fmt.Sprintf("%03d-%s.md", rank, slugify(t.Title))
}

func parseRank(name string) (int, bool) {
	if !strings.HasSuffix(name, ".md") {
		return 0, false
	}
	dash := strings.Index(name, "-")
	if dash < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:dash])
	if err != nil {
		return 0, false
	}
	return n, true
}

func slugify(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	if s == "" {
		return "untitled"
	}
	return s
}

// TaskFileNode is a single /Do/<rank>-<title>.md entry.
type TaskFileNode struct {
	BaseNode
	task priority.ComputedTask
	rank int
}

var (
	_ fs.NodeGetattrer = (*TaskFileNode)(nil)
	_ fs.NodeOpener    = (*TaskFileNode)(nil)
	_ fs.NodeReader    = (*TaskFileNode)(nil)
)

func (n *TaskFileNode) content() []byte {
	t := n.task
	due := "none"
	if t.EffectiveDueDate != nil {
		due = t.EffectiveDueDate.Time().Format(time.RFC3339)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "rank: %d\n", n.rank)
	fmt.Fprintf(&b, "id: %s\n", t.ID)
	fmt.Fprintf(&b, "priority: %.6f\n", t.Priority)
	fmt.Fprintf(&b, "importance: %.4f\n", t.NormalizedImportance)
	fmt.Fprintf(&b, "status: %s\n", t.Status)
	fmt.Fprintf(&b, "dueDate: %s\n", due)
	fmt.Fprintf(&b, "isContainer: %t\n", t.IsContainer)
	fmt.Fprintf(&b, "---\n\n# %s\n", t.Title)
	if t.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Notes)
	}
	return []byte(b.String())
}

func (n *TaskFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	content := n.content()
	out.Mode = 0o444 | syscall.S_IFREG
	out.Size = uint64(len(content))
	n.setOwner(&out.Attr)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (n *TaskFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *TaskFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return readAt(n.content(), dest, off), 0
}

// BalanceNode is /Balance: one file per root task, named by its title.
type BalanceNode struct{ BaseNode }

var (
	_ fs.NodeReaddirer = (*BalanceNode)(nil)
	_ fs.NodeLookuper  = (*BalanceNode)(nil)
)

func (bn *BalanceNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	d, _, bal, err := bn.tlfs.snapshot(ctx)
	if err != nil {
		log.Printf("[fsview] Balance readdir: %v", err)
		return nil, syscall.EIO
	}

	items := sortedItems(bal)
	entries := make([]fuse.DirEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, fuse.DirEntry{Name: balanceFilename(d, item), Mode: syscall.S_IFREG})
	}
	return fs.NewListDirStream(entries), 0
}

func (bn *BalanceNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	d, _, bal, err := bn.tlfs.snapshot(ctx)
	if err != nil {
		return nil, syscall.EIO
	}

	for _, item := range bal.Items {
		if balanceFilename(d, item) == name {
			node := &BalanceFileNode{BaseNode: BaseNode{tlfs: bn.tlfs}, item: item, total: bal.TotalCredits}
			content := node.content()
			now := time.Now()
			out.Attr.Mode = 0o444 | syscall.S_IFREG
			out.Attr.Size = uint64(len(content))
			bn.setOwner(&out.Attr)
			out.Attr.SetTimes(&now, &now, &now)
			return bn.NewInode(ctx, node, fs.StableAttr{Mode: syscall.S_IFREG}), 0
		}
	}
	return nil, syscall.ENOENT
}

func sortedItems(bal balance.Data) []balance.Item {
	items := append([]balance.Item(nil), bal.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].RootID < items[j].RootID })
	return items
}

func balanceFilename(d *tlmodel.DocumentState, item balance.Item) string {
	title := string(item.RootID)
	if d != nil {
		if t, ok := d.Tasks[item.RootID]; ok {
			title = t.Title
		}
	}
	return slugify(title) + ".md"
}

// BalanceFileNode is a single /Balance/<root>.md entry.
type BalanceFileNode struct {
	BaseNode
	item  balance.Item
	total float64
}

var (
	_ fs.NodeGetattrer = (*BalanceFileNode)(nil)
	_ fs.NodeOpener    = (*BalanceFileNode)(nil)
	_ fs.NodeReader    = (*BalanceFileNode)(nil)
)

func (n *BalanceFileNode) content() []byte {
	i := n.item
	var b strings.Builder
	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "rootId: %s\n", i.RootID)
	fmt.Fprintf(&b, "aggregatedCredit: %.4f\n", i.AggregatedCredit)
	fmt.Fprintf(&b, "desiredCredit: %.4f\n", i.DesiredCredit)
	fmt.Fprintf(&b, "targetPercent: %.4f\n", i.TargetPercent)
	fmt.Fprintf(&b, "actualPercent: %.4f\n", i.ActualPercent)
	fmt.Fprintf(&b, "isStarving: %t\n", i.IsStarving)
	fmt.Fprintf(&b, "totalCredits: %.4f\n", n.total)
	fmt.Fprintf(&b, "---\n")
	return []byte(b.String())
}

func (n *BalanceFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	now := time.Now()
	content := n.content()
	out.Mode = 0o444 | syscall.S_IFREG
	out.Size = uint64(len(content))
	n.setOwner(&out.Attr)
	out.SetTimes(&now, &now, &now)
	return 0
}

func (n *BalanceFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *BalanceFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return readAt(n.content(), dest, off), 0
}

func readAt(content []byte, dest []byte, off int64) fuse.ReadResult {
	if off >= int64(len(content)) {
		return fuse.ReadResultData(nil)
	}
	end := off + int64(len(dest))
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return fuse.ReadResultData(content[off:end])
}

// Mount mounts tlfs at mountpoint, matching the teacher's MountFS
// timeout/option choices.
func Mount(mountpoint string, tlfs *TaskLensFS, debug bool) (*fuse.Server, error) {
	root := &RootNode{BaseNode{tlfs: tlfs}}

	attrTimeout := 10 * time.Second
	entryTimeout := 5 * time.Second

	opts := &fs.Options{
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
		MountOptions: fuse.MountOptions{
			Name:   "tasklensfs",
			FsName: "tasklens",
			Debug:  debug,
		},
	}

	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	tlfs.SetServer(server)
	return server, nil
}
