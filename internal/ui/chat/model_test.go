// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatsync/internal/backend"
	chatctl "github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/ui/styles"
)

// =============================================================================
// FAKE CONTROLLER
// =============================================================================

type fakeController struct {
	mu       sync.Mutex
	snap     chatctl.Snapshot
	sent     []string
	files    []string
	selected []string
	deleted  []string
	fetches  int
	retries  int
	cleared  int
	newChats int
	errClear int
}

func (f *fakeController) Snapshot() chatctl.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Seq++
	return f.snap
}

func (f *fakeController) Fetch(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return nil
}

func (f *fakeController) Retry(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	return nil
}

func (f *fakeController) Send(_ context.Context, text string, files ...backend.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	for _, file := range files {
		f.files = append(f.files, file.Name)
	}
	return nil
}

func (f *fakeController) NewChat() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newChats++
	f.snap.ActiveChatID = "new-chat"
	f.snap.Items = nil
	return "new-chat"
}

func (f *fakeController) Select(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, id)
	f.snap.ActiveChatID = id
	return nil
}

func (f *fakeController) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeController) ClearHistory(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeController) ClearError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errClear++
	f.snap.Err = nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, ctrl *fakeController) Model {
	t.Helper()
	m := New(ctrl, styles.NewTheme(styles.ThemeDark), Options{ShowTimestamps: true})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func snapshotWith(seq uint64, msgs ...*model.Message) chatctl.Snapshot {
	return chatctl.Snapshot{
		Seq:          seq,
		ActiveChatID: "chat-1",
		Chats: []model.ChatMeta{
			{ID: "chat-1", Title: "Weather", MessageCount: len(msgs), UpdatedAt: time.Now()},
			{ID: "chat-2", Title: "Recipes"},
		},
		Messages: msgs,
		Items:    chatctl.Guard(msgs),
		UserID:   "alice",
	}
}

func newMsg(id string, role model.Role, content string) *model.Message {
	m := model.NewMessage(role, content)
	m.ID = id
	return m
}

// =============================================================================
// TESTS
// =============================================================================

func TestInitFetchesHistory(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, styles.NewTheme(styles.ThemeDark), Options{})

	require.NotNil(t, m.Init())
	done := fetchCmd(ctrl)()
	assert.Equal(t, opDoneMsg{op: opFetch}, done)
	assert.Equal(t, 1, ctrl.fetches)
}

func TestViewRendersGuardedItems(t *testing.T) {
	m := newTestModel(t, &fakeController{})

	m, _ = update(t, m, SnapshotMsg{Snapshot: snapshotWith(100,
		newMsg("u1", model.RoleUser, "How's the weather?"),
		newMsg("a1", model.RoleAssistant, ""),
		newMsg("u2", model.RoleUser, ""),
	)})

	view := m.View()
	assert.Contains(t, view, "How's the weather?")
	assert.Contains(t, view, chatctl.ThinkingText)
	assert.Contains(t, view, chatctl.EmptyUserText)
	assert.Contains(t, view, "alice")
}

func TestStaleSnapshotIgnored(t *testing.T) {
	m := newTestModel(t, &fakeController{})

	m, _ = update(t, m, SnapshotMsg{Snapshot: snapshotWith(100, newMsg("u1", model.RoleUser, "newer"))})
	m, _ = update(t, m, SnapshotMsg{Snapshot: snapshotWith(50, newMsg("u1", model.RoleUser, "older"))})

	assert.Equal(t, uint64(100), m.Snapshot().Seq)
	assert.Contains(t, m.View(), "newer")
	assert.NotContains(t, m.View(), "older")
}

func TestEmptyTranscript(t *testing.T) {
	m := newTestModel(t, &fakeController{})
	assert.Contains(t, m.View(), "No messages yet")
}

func TestSubmitSendsAndClearsInput(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)

	m = typeText(t, m, "hello")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	done := cmd().(opDoneMsg)
	assert.NoError(t, done.err)
	assert.Equal(t, []string{"hello"}, ctrl.sent)
}

func TestSubmitBlankDoesNothing(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)

	m = typeText(t, m, "   ")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.sent)
}

func TestErrorBannerAndRetry(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)

	snap := snapshotWith(100)
	snap.Err = &backend.Error{Kind: backend.KindTimeout, Op: "fetch history"}
	m, _ = update(t, m, SnapshotMsg{Snapshot: snap})

	view := m.View()
	assert.Contains(t, view, "took too long")
	assert.Contains(t, view, "Ctrl+R to retry")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.retries)
}

func TestReloginHint(t *testing.T) {
	m := newTestModel(t, &fakeController{})

	snap := snapshotWith(100)
	snap.Err = &backend.Error{Kind: backend.KindNoToken, Op: "fetch history"}
	m, _ = update(t, m, SnapshotMsg{Snapshot: snap})

	assert.Contains(t, m.View(), "chatsync login")
}

func TestEscClearsError(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.snap.Err = &backend.Error{Kind: backend.KindServerError}
	m := newTestModel(t, ctrl)
	require.True(t, m.Snapshot().HasError())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, 1, ctrl.errClear)
	assert.False(t, m.Snapshot().HasError())
}

func TestChatListSelect(t *testing.T) {
	ctrl := &fakeController{snap: snapshotWith(0)}
	m := newTestModel(t, ctrl)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusList, m.focus)
	assert.Equal(t, 0, m.cursor, "cursor starts on the active chat")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"chat-2"}, ctrl.selected)
	assert.Equal(t, focusInput, m.focus)
	assert.Equal(t, "chat-2", m.Snapshot().ActiveChatID)
}

func TestChatListDelete(t *testing.T) {
	ctrl := &fakeController{snap: snapshotWith(0)}
	m := newTestModel(t, ctrl)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	require.NotNil(t, cmd)

	done := cmd().(opDoneMsg)
	assert.Equal(t, opDelete, done.op)
	assert.Equal(t, []string{"chat-1"}, ctrl.deleted)
	assert.Equal(t, "Chat deleted", statusFor(done))
}

func TestNewChatKey(t *testing.T) {
	ctrl := &fakeController{snap: snapshotWith(0, newMsg("u1", model.RoleUser, "zebra crossing"))}
	m := newTestModel(t, ctrl)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, 1, ctrl.newChats)
	assert.Equal(t, "new-chat", m.Snapshot().ActiveChatID)
	assert.NotContains(t, m.View(), "zebra")
}

func TestSlashCommands(t *testing.T) {
	ctrl := &fakeController{snap: snapshotWith(0)}
	m := newTestModel(t, ctrl)

	m = typeText(t, m, "/clear")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.cleared)

	m = typeText(t, m, "/bogus")
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "Unknown command")
	assert.Empty(t, ctrl.sent)
}

func TestAttachCommand(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("buy milk"), 0o600))

	m = typeText(t, m, "/attach "+path+" summarize this")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	done := cmd().(opDoneMsg)
	assert.NoError(t, done.err)
	assert.Equal(t, []string{"summarize this"}, ctrl.sent)
	assert.Equal(t, []string{"notes.txt"}, ctrl.files)
}

func TestAttachMissingFile(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)

	m = typeText(t, m, "/attach /does/not/exist hi")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Contains(t, m.status, "open attachment")
	assert.Empty(t, ctrl.sent)
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &fakeController{})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
