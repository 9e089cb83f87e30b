package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/connectivity"
	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/media"
	"snapshoot-sync/internal/domain/message"
	"snapshoot-sync/internal/domain/story"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/internal/kv"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"github.com/stretchr/testify/require"
)

var (
	epoch     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errRemote = errors.New("connection reset by peer")
)

// fakeRemote is an in-memory backend. Every call is recorded; fail makes
// all of them return errRemote, errs overrides single operations.
type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	fail  bool
	errs  map[string]error
	seq   int

	me       user.User
	stories  []story.Story
	messages []message.Message
	privacy  location.Privacy
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{errs: map[string]error{}}
}

func (f *fakeRemote) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err, ok := f.errs[op]; ok {
		return err
	}
	if f.fail {
		return errRemote
	}
	return nil
}

func (f *fakeRemote) nextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeRemote) UploadMedia(_ context.Context, up media.Upload) (media.Uploaded, error) {
	if err := f.record("upload"); err != nil {
		return media.Uploaded{}, err
	}
	id := f.nextID("m")
	return media.Uploaded{ID: id, URL: "https://cdn.test/" + id + filepath.Ext(up.LocalPath)}, nil
}

func (f *fakeRemote) DeleteMedia(context.Context, string) error {
	return f.record("delete_media")
}

func (f *fakeRemote) CreateStory(_ context.Context, in api.CreateStoryInput) (story.Story, error) {
	if err := f.record("create_story"); err != nil {
		return story.Story{}, err
	}
	st := story.New(f.nextID("srv"), f.me.ID, in.MediaURL, in.MediaKind, epoch)
	st.Caption = in.Caption
	st.Location = in.Location
	return st, nil
}

func (f *fakeRemote) ListStories(context.Context) ([]story.Story, error) {
	if err := f.record("list_stories"); err != nil {
		return nil, err
	}
	return append([]story.Story(nil), f.stories...), nil
}

func (f *fakeRemote) NearbyStories(context.Context, location.Coordinates, float64) ([]story.Story, error) {
	if err := f.record("nearby_stories"); err != nil {
		return nil, err
	}
	return append([]story.Story(nil), f.stories...), nil
}

func (f *fakeRemote) DeleteStory(context.Context, string) error { return f.record("delete_story") }
func (f *fakeRemote) ViewStory(context.Context, string) error   { return f.record("view_story") }
func (f *fakeRemote) LikeStory(context.Context, string) error   { return f.record("like_story") }
func (f *fakeRemote) UnlikeStory(context.Context, string) error { return f.record("unlike_story") }
func (f *fakeRemote) Follow(context.Context, string) error      { return f.record("follow") }
func (f *fakeRemote) Unfollow(context.Context, string) error    { return f.record("unfollow") }

func (f *fakeRemote) Me(context.Context) (user.User, error) {
	if err := f.record("me"); err != nil {
		return user.User{}, err
	}
	return f.me, nil
}

func (f *fakeRemote) UpdateMe(_ context.Context, upd user.ProfileUpdate) (user.User, error) {
	if err := f.record("update_me"); err != nil {
		return user.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.me = upd.Apply(f.me)
	return f.me, nil
}

func (f *fakeRemote) GetUser(_ context.Context, id string) (user.User, error) {
	if err := f.record("get_user"); err != nil {
		return user.User{}, err
	}
	return user.User{ID: id, Username: "user-" + id}, nil
}

func (f *fakeRemote) SearchUsers(_ context.Context, query string) ([]user.User, error) {
	if err := f.record("search_users"); err != nil {
		return nil, err
	}
	return []user.User{{ID: "u9", Username: query}}, nil
}

func (f *fakeRemote) UpdateNotificationPreferences(context.Context, user.NotificationPreferences) error {
	return f.record("update_notifications")
}

func (f *fakeRemote) SendMessage(_ context.Context, conversationID string, in api.SendMessageInput) (message.Message, error) {
	if err := f.record("send_message"); err != nil {
		return message.Message{}, err
	}
	m := message.Message{
		ID:             f.nextID("msg"),
		ConversationID: conversationID,
		SenderID:       f.me.ID,
		Content:        in.Content,
		ImageURL:       in.MediaURL,
	}
	f.mu.Lock()
	f.messages = append(f.messages, m)
	f.mu.Unlock()
	return m, nil
}

func (f *fakeRemote) ListMessages(_ context.Context, conversationID string, _ api.ListMessagesInput) ([]message.Message, error) {
	if err := f.record("list_messages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateGroup(_ context.Context, name string, members []string) (api.Group, error) {
	if err := f.record("create_group"); err != nil {
		return api.Group{}, err
	}
	return api.Group{ID: f.nextID("g"), Name: name, CreatorID: f.me.ID, Members: members}, nil
}

func (f *fakeRemote) AddGroupMembers(context.Context, string, []string) error {
	return f.record("add_group_members")
}

func (f *fakeRemote) LeaveGroup(context.Context, string, string) error {
	return f.record("leave_group")
}

func (f *fakeRemote) UpdateLocation(context.Context, location.Coordinates) error {
	return f.record("update_location")
}

func (f *fakeRemote) GetPrivacy(context.Context) (location.Privacy, error) {
	if err := f.record("get_privacy"); err != nil {
		return location.Privacy{}, err
	}
	return f.privacy, nil
}

func (f *fakeRemote) UpdatePrivacy(context.Context, location.Privacy) error {
	return f.record("update_privacy")
}

func (f *fakeRemote) NearbyUsers(context.Context, location.Coordinates, float64) ([]location.NearbyUser, error) {
	if err := f.record("nearby_users"); err != nil {
		return nil, err
	}
	return []location.NearbyUser{{UserID: "u7", Username: "near", DistanceKm: 0.4}}, nil
}

// fakeIdentity signs in as id; an empty id is signed out.
type fakeIdentity struct {
	id string
}

func (f fakeIdentity) CurrentUserID(context.Context) (string, error) {
	if f.id == "" {
		return "", snapshoot_errors.ErrNotAuthenticated
	}
	return f.id, nil
}

func (f fakeIdentity) CurrentUser(ctx context.Context) (user.User, error) {
	id, err := f.CurrentUserID(ctx)
	if err != nil {
		return user.User{}, err
	}
	return user.User{ID: id, Role: domain.UserRoleUser}, nil
}

type fixture struct {
	monitor *connectivity.Monitor
	remote  *fakeRemote
	repos   *repository.Repositories
	store   *kv.MemoryStore
	svc     *Services
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	store := kv.NewMemoryStore()
	remote := newFakeRemote()
	remote.me = user.User{ID: "u1", Username: "alice", Following: domain.IDSet{}, Followers: domain.IDSet{}}
	monitor := connectivity.NewMonitor(online)
	repos := repository.New(store, func() time.Time { return epoch })
	env := &Env{
		Signal: monitor,
		Auth:   fakeIdentity{id: "u1"},
		Now:    func() time.Time { return epoch },
	}
	svc := New(env, repos, remote, remote)
	t.Cleanup(env.Wait)
	return &fixture{monitor: monitor, remote: remote, repos: repos, store: store, svc: svc}
}

func (fx *fixture) signOut() {
	fx.svc.Env.Auth = fakeIdentity{}
}

func (fx *fixture) signInAs(id string) {
	fx.svc.Env.Auth = fakeIdentity{id: id}
}

func writePhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0jpeg"), 0o600))
	return path
}
