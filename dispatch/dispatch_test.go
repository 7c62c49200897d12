package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/testutil"
)

const (
	ownerID     = int64(1)
	adminID     = int64(2)
	memberID    = int64(3)
	groupChat   = int64(-100)
	controlChat = int64(500)
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		prefix string
		ok     bool
		want   Command
	}{
		{name: "no prefix", text: "hello", prefix: "+"},
		{name: "prefix only", text: "+  ", prefix: "+"},
		{name: "simple", text: "+ping", prefix: "+", ok: true, want: Command{Name: "ping", Args: []string{}}},
		{name: "case folded", text: "+HangMan", prefix: "+", ok: true, want: Command{Name: "hangman", Args: []string{}}},
		{
			name: "args keep case", text: "+setwelcome Hello  World", prefix: "+", ok: true,
			want: Command{Name: "setwelcome", Args: []string{"Hello", "World"}, Raw: "Hello  World"},
		},
		{
			name: "newline after command", text: "+setgoodbye\nBye now", prefix: "+", ok: true,
			want: Command{Name: "setgoodbye", Args: []string{"Bye", "now"}, Raw: "Bye now"},
		},
		{name: "bot suffix", text: "!help@KeeperBot", prefix: "!", ok: true, want: Command{Name: "help", Args: []string{}}},
		{name: "multi rune prefix", text: ">>ping", prefix: ">>", ok: true, want: Command{Name: "ping", Args: []string{}}},
		{name: "other prefix", text: "+ping", prefix: "!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Tokenize(tt.text, tt.prefix)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Name != tt.want.Name || got.Raw != tt.want.Raw || len(got.Args) != len(tt.want.Args) {
				t.Fatalf("Tokenize(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
			if len(got.Args) > 0 && !reflect.DeepEqual(got.Args, tt.want.Args) {
				t.Fatalf("args = %v, want %v", got.Args, tt.want.Args)
			}
		})
	}
}

func TestChatLocksSerializePerChat(t *testing.T) {
	locks := NewChatLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(groupChat)
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, lost updates", counter)
	}
	if locks.Len() != 0 {
		t.Fatalf("locks leaked: %d", locks.Len())
	}
}

func TestRouterFirstDeclaringGroupWins(t *testing.T) {
	var calls []string
	handler := func(name string, err error) Handler {
		return func(context.Context, *Request) error {
			calls = append(calls, name)
			return err
		}
	}

	router, err := NewRouter(
		Group{Name: "system", Routes: []Route{{Command: "ping", Role: roles.Member, Handler: handler("system", nil)}}},
		Group{Name: "admin", Routes: []Route{
			{Command: "tag", Role: roles.Admin, Handler: handler("admin", nil)},
			{Command: "maybe", Role: roles.Admin, Handler: handler("admin", ErrPass)},
		}},
		Group{Name: "media", Routes: []Route{
			{Command: "tag", Role: roles.Member, Handler: handler("media", nil)},
			{Command: "maybe", Aliases: []string{"perhaps"}, Role: roles.Member, Handler: handler("media", nil)},
		}},
	)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	if role, ok := router.Required("tag"); !ok || role != roles.Admin {
		t.Fatalf("tag requires %v, %v; want admin", role, ok)
	}

	for i := 0; i < 10; i++ {
		group, err := router.Dispatch(context.Background(), &Request{Command: "tag"})
		if err != nil || group != "admin" {
			t.Fatalf("tag claimed by %q, %v", group, err)
		}
	}

	calls = nil
	group, err := router.Dispatch(context.Background(), &Request{Command: "maybe"})
	if err != nil || group != "media" {
		t.Fatalf("maybe claimed by %q, %v", group, err)
	}
	if !reflect.DeepEqual(calls, []string{"admin", "media"}) {
		t.Fatalf("calls = %v", calls)
	}

	if group, _ := router.Dispatch(context.Background(), &Request{Command: "perhaps"}); group != "media" {
		t.Fatalf("alias claimed by %q", group)
	}
	if group, _ := router.Dispatch(context.Background(), &Request{Command: "nope"}); group != "" {
		t.Fatalf("unknown command claimed by %q", group)
	}
}

func TestNewRouterRejectsInvalidGroups(t *testing.T) {
	noop := func(context.Context, *Request) error { return nil }

	if _, err := NewRouter(Group{Name: "a"}, Group{Name: "a"}); err == nil {
		t.Fatal("duplicate group names must be rejected")
	}
	if _, err := NewRouter(Group{Name: "a", Routes: []Route{{Command: "x"}}}); err == nil {
		t.Fatal("routes without handlers must be rejected")
	}
	if _, err := NewRouter(Group{Name: "a", Routes: []Route{{Command: "x", Handler: noop}}}); err != nil {
		t.Fatalf("valid router: %v", err)
	}
}

type fixture struct {
	store     *testutil.MemoryStore
	transport *testutil.Recorder
	pipeline  *Pipeline
	handled   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     testutil.NewMemoryStore(),
		transport: testutil.NewRecorder(adminID),
	}
	record := func(name string) Handler {
		return func(ctx context.Context, req *Request) error {
			f.handled = append(f.handled, name)
			return req.Reply(ctx, name+" done")
		}
	}

	router, err := NewRouter(
		Group{Name: "system", Routes: []Route{
			{Command: "ping", Role: roles.Member, Handler: record("ping")},
			{Command: StatusCommand, Role: roles.Member, Handler: record("alive")},
			{Command: "ban", Role: roles.Owner, Handler: record("ban")},
			{Command: "invalid", Role: roles.Member, Handler: func(context.Context, *Request) error {
				return apperr.New(apperr.Validation, "Bad argument.")
			}},
			{Command: "broken", Role: roles.Member, Handler: func(context.Context, *Request) error {
				return apperr.Wrap(apperr.Transient, "store down", testutil.ErrInjected)
			}},
			{Command: "boom", Role: roles.Member, Handler: func(context.Context, *Request) error {
				panic("handler exploded")
			}},
			{Command: "noise", Role: roles.Member, Handler: func(context.Context, *Request) error {
				return errors.New("transport: Bad MAC while reading")
			}},
			{Command: "wrappednoise", Role: roles.Member, Handler: func(context.Context, *Request) error {
				return apperr.Wrap(apperr.Transient, "could not send", fmt.Errorf("telego: %w", errors.New("Bad MAC")))
			}},
			{Command: "find", Role: roles.Member, Handler: func(_ context.Context, req *Request) error {
				return apperr.Wrap(apperr.NotFound, fmt.Sprintf("Not found: %q", req.Raw), errors.New("lookup: not found"))
			}},
			{Command: "bump", Role: roles.Member, Handler: func(ctx context.Context, req *Request) error {
				current := req.Snapshot.Warning(req.ChatID(), req.Sender().ID)
				time.Sleep(time.Millisecond)
				return f.store.UpsertWarning(ctx, storage.WarningKey{ChatID: req.ChatID(), UserID: req.Sender().ID}, current+1)
			}},
		}},
		Group{Name: "admin", Routes: []Route{{Command: "kick", Role: roles.Admin, Handler: record("kick")}}},
	)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	f.pipeline = NewPipeline(f.store, f.transport, router, nil, Options{OwnerID: ownerID, ControlChatID: controlChat})
	return f
}

func (f *fixture) approve(t *testing.T, settings storage.GroupSettings) {
	t.Helper()
	settings.ChatID = groupChat
	settings.Approved = true
	if err := f.store.UpsertGroup(context.Background(), settings); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
}

func (f *fixture) send(from int64, text string) {
	f.pipeline.Handle(context.Background(), groupMessage(from, text))
}

func groupMessage(from int64, text string) chat.Message {
	return chat.Message{
		ID:        10,
		ChatID:    groupChat,
		ChatType:  chat.Group,
		ChatTitle: "Test group",
		From:      chat.User{ID: from, FirstName: fmt.Sprintf("User%d", from)},
		Content:   chat.Text{Body: text},
	}
}

func TestPipelineRoutesCommands(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{})

	f.send(memberID, "+PING")
	f.send(memberID, "hello everyone")

	if !reflect.DeepEqual(f.handled, []string{"ping"}) {
		t.Fatalf("handled = %v", f.handled)
	}
	if f.store.Loads != 2 {
		t.Fatalf("snapshot must be loaded once per message, got %d loads", f.store.Loads)
	}
}

func TestPipelineUsesStoredPrefix(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{})
	if err := f.store.SetPrefix(context.Background(), "!"); err != nil {
		t.Fatal(err)
	}

	f.send(memberID, "+ping")
	f.send(memberID, "!ping")

	if len(f.handled) != 1 {
		t.Fatalf("handled = %v", f.handled)
	}
}

func TestPipelineUnapprovedGroup(t *testing.T) {
	f := newFixture(t)

	f.send(memberID, "+ping")
	if len(f.transport.Sent) != 0 || len(f.handled) != 0 {
		t.Fatalf("unapproved group must be silent, sent %v", f.transport.Texts())
	}

	snap, err := f.store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	group, ok := snap.Group(groupChat)
	if !ok || group.Approved || group.Title != "Test group" {
		t.Fatalf("group not registered as pending: %+v, %v", group, ok)
	}

	f.send(memberID, "+alive")
	if len(f.handled) != 0 {
		t.Fatalf("status handler must not run in unapproved groups: %v", f.handled)
	}
	if len(f.transport.Sent) != 2 {
		t.Fatalf("expected control request and group reply, got %v", f.transport.Texts())
	}
	request := f.transport.Sent[0]
	if request.ChatID != controlChat || !f.transport.SentContaining("+accept -100") {
		t.Fatalf("unexpected approval request %+v", request)
	}
	if f.transport.LastText() != "This group is not approved. Request sent to control group." {
		t.Fatalf("unexpected group reply %q", f.transport.LastText())
	}
}

func TestPipelineRejectedGroupDoesNotForward(t *testing.T) {
	f := newFixture(t)
	if err := f.store.UpsertGroup(context.Background(), storage.GroupSettings{ChatID: groupChat, Blocked: true}); err != nil {
		t.Fatal(err)
	}

	f.send(memberID, "+alive")

	if len(f.transport.Sent) != 1 || f.transport.Sent[0].ChatID != groupChat {
		t.Fatalf("expected a single reply in the group, got %+v", f.transport.Sent)
	}
}

func TestPipelineDropsBannedUsers(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{})
	for _, id := range []int64{memberID, ownerID} {
		if err := f.store.UpsertBan(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}

	f.send(memberID, "+ping")
	if len(f.transport.Sent) != 0 || len(f.transport.Reactions) != 0 {
		t.Fatalf("banned users get no reply, got %v", f.transport.Texts())
	}

	f.send(ownerID, "+ping")
	if !reflect.DeepEqual(f.handled, []string{"ping"}) {
		t.Fatalf("a banned owner still resolves to owner, handled = %v", f.handled)
	}
}

func TestPipelineAntilink(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{Antilink: true})

	for i := 1; i <= 3; i++ {
		f.send(memberID, "+ping https://spam.example.com")
		if i < 3 {
			if n, _ := f.store.WarningCount(groupChat, memberID); n != i {
				t.Fatalf("after link %d count = %d", i, n)
			}
		}
	}

	if len(f.handled) != 0 {
		t.Fatalf("moderated messages must not run commands: %v", f.handled)
	}
	if _, ok := f.store.WarningCount(groupChat, memberID); ok {
		t.Fatal("count must be cleared after removal")
	}
	if !reflect.DeepEqual(f.transport.Kicked, []int64{memberID}) {
		t.Fatalf("kicked = %v", f.transport.Kicked)
	}
	if len(f.transport.Deleted) != 3 {
		t.Fatalf("deleted = %v", f.transport.Deleted)
	}

	f.transport.Reset()
	f.send(ownerID, "+ping www.example.com")
	if _, ok := f.store.WarningCount(groupChat, ownerID); ok || len(f.transport.Kicked) != 0 {
		t.Fatal("owner links must never be warned")
	}
	if !reflect.DeepEqual(f.handled, []string{"ping"}) {
		t.Fatalf("owner command should run, handled = %v", f.handled)
	}
}

func TestPipelineAntilinkChecksCaptionsAndQuotes(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{Antilink: true})

	msg := groupMessage(memberID, "")
	msg.Content = chat.Media{Kind: chat.Photo, Caption: "free stuff at bit.ly/x"}
	f.pipeline.Handle(context.Background(), msg)

	quoted := groupMessage(memberID, "")
	quoted.Content = chat.Sticker{Emoji: "😀"}
	quoted.Reply = &chat.Quoted{MessageID: 3, From: chat.User{ID: 99}, Content: chat.Text{Body: "t.me/somechannel"}}
	f.pipeline.Handle(context.Background(), quoted)

	if n, _ := f.store.WarningCount(groupChat, memberID); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestPipelinePermissionGate(t *testing.T) {
	tests := []struct {
		name    string
		from    int64
		text    string
		allowed bool
		denial  string
	}{
		{name: "member kick", from: memberID, text: "+kick", denial: "This command is for group admins only."},
		{name: "member ban", from: memberID, text: "+ban", denial: "This command is for bot owners only."},
		{name: "admin ban", from: adminID, text: "+ban", denial: "This command is for bot owners only."},
		{name: "admin kick", from: adminID, text: "+kick", allowed: true},
		{name: "owner kick", from: ownerID, text: "+kick", allowed: true},
		{name: "owner ban", from: ownerID, text: "+ban", allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.approve(t, storage.GroupSettings{})

			f.send(tt.from, tt.text)

			if tt.allowed {
				if len(f.handled) != 1 {
					t.Fatalf("command should run, handled = %v", f.handled)
				}
				return
			}
			if len(f.handled) != 0 {
				t.Fatalf("command must not run, handled = %v", f.handled)
			}
			if f.transport.LastReaction() != chat.ReactionDenied || f.transport.LastText() != tt.denial {
				t.Fatalf("got %q / %q", f.transport.LastReaction(), f.transport.LastText())
			}
		})
	}
}

func TestPipelineAdminLookupFailureDegradesToMember(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{})
	f.transport.AdminErr = testutil.ErrInjected

	f.send(adminID, "+kick")

	if len(f.handled) != 0 || f.transport.LastReaction() != chat.ReactionDenied {
		t.Fatalf("admin lookup failure must deny, handled = %v", f.handled)
	}
}

func TestPipelineUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{})

	f.send(memberID, "+dance now")

	if f.transport.LastText() != "Unknown command: dance. Type +help for available commands." {
		t.Fatalf("unexpected reply %q", f.transport.LastText())
	}
	if f.transport.LastReaction() != chat.ReactionFailed {
		t.Fatalf("unexpected reaction %q", f.transport.LastReaction())
	}
}

func TestPipelineErrorBoundary(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		reply    string
		reaction chat.Reaction
	}{
		{name: "validation", text: "+invalid", reply: "Bad argument.", reaction: chat.ReactionFailed},
		{name: "transient", text: "+broken", reply: genericFailure, reaction: chat.ReactionFailed},
		{name: "panic", text: "+boom", reply: genericFailure, reaction: chat.ReactionFailed},
		{name: "decryption noise", text: "+noise"},
		{name: "wrapped decryption noise", text: "+wrappednoise"},
		{name: "user text quoting noise", text: "+find Bad MAC", reply: `Not found: "Bad MAC"`, reaction: chat.ReactionFailed},
		{name: "user text quoting decrypt", text: "+find decrypt", reply: `Not found: "decrypt"`, reaction: chat.ReactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.approve(t, storage.GroupSettings{})

			f.send(memberID, tt.text)

			if f.transport.LastText() != tt.reply || f.transport.LastReaction() != tt.reaction {
				t.Fatalf("got %q / %q", f.transport.LastText(), f.transport.LastReaction())
			}

			f.send(memberID, "+ping")
			if !reflect.DeepEqual(f.handled, []string{"ping"}) {
				t.Fatalf("next message must be processed, handled = %v", f.handled)
			}
		})
	}
}

func TestIsTransportNoise(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "plain", err: errors.New("Bad MAC"), want: true},
		{name: "wrapped", err: fmt.Errorf("receive: %w", errors.New("failed to decrypt message")), want: true},
		{name: "behind apperr", err: apperr.Wrap(apperr.Transient, "send failed", errors.New("Bad MAC")), want: true},
		{name: "apperr message", err: apperr.New(apperr.NotFound, `Movie not found: "Bad MAC"`)},
		{name: "apperr message with clean cause", err: apperr.Wrap(apperr.NotFound, "decrypt", errors.New("not found"))},
		{name: "unrelated", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransportNoise(tt.err); got != tt.want {
				t.Fatalf("isTransportNoise() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipelineSerializesConcurrentMessagesPerChat(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{})

	const messages = 20
	var wg sync.WaitGroup
	for i := 0; i < messages; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.send(memberID, "+bump")
		}()
	}
	wg.Wait()

	snap, err := f.store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := snap.Warning(groupChat, memberID); got != messages {
		t.Fatalf("count = %d, want %d", got, messages)
	}
}

func TestPipelineConcurrentLinksAreAllCounted(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{Antilink: true})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.send(memberID, "join https://t.me/spam")
		}()
	}
	wg.Wait()

	snap, err := f.store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := snap.Warning(groupChat, memberID); got != 2 {
		t.Fatalf("warnings = %d, want 2", got)
	}
}

func TestPipelineStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{})
	f.store.SetFailure(testutil.ErrInjected)

	f.send(memberID, "+ping")

	if f.transport.LastText() != genericFailure || len(f.handled) != 0 {
		t.Fatalf("got %q, handled %v", f.transport.LastText(), f.handled)
	}
}

func TestPipelineMembership(t *testing.T) {
	f := newFixture(t)
	f.approve(t, storage.GroupSettings{Welcome: true, Goodbye: true, GoodbyeText: "Farewell"})

	joined := chat.User{ID: 40, FirstName: "New"}
	left := chat.User{ID: 41, FirstName: "Old"}
	msg := groupMessage(joined.ID, "")
	msg.Content = chat.Membership{Joined: []chat.User{joined}, Left: []chat.User{left}}
	f.pipeline.Handle(context.Background(), msg)

	want := []string{storage.DefaultWelcomeText + " @40", "Farewell @41"}
	if !reflect.DeepEqual(f.transport.Texts(), want) {
		t.Fatalf("texts = %v, want %v", f.transport.Texts(), want)
	}
	if got := f.transport.Sent[0].Mentions; len(got) != 1 || got[0].ID != joined.ID {
		t.Fatalf("welcome must mention the new member, got %+v", got)
	}
}

func TestPipelinePrivateChat(t *testing.T) {
	f := newFixture(t)

	f.pipeline.Handle(context.Background(), chat.Message{
		ID:       1,
		ChatID:   memberID,
		ChatType: chat.Private,
		From:     chat.User{ID: memberID},
		Content:  chat.Text{Body: "+ping"},
	})

	if !reflect.DeepEqual(f.handled, []string{"ping"}) {
		t.Fatalf("private chats need no approval, handled = %v", f.handled)
	}
}
