package chat

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dao "moment_social_server/internal/dao/mysql"
	"moment_social_server/internal/infrastructure/push"
	"moment_social_server/internal/infrastructure/state"
	"moment_social_server/internal/model"
	"moment_social_server/pkg/errorx"
)

// ---- Repository 桩实现 ----

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.UserInfo
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*model.UserInfo)}
}

func (s *stubUserRepo) FindByUuid(uuid string) (*model.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[uuid]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, errorx.New(errorx.CodeNotFound, "用户不存在")
}

func (s *stubUserRepo) Create(user *model.UserInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Uuid] = user
	return nil
}

type stubConversationRepo struct {
	mu      sync.Mutex
	convs   map[string]*model.Conversation
	touched map[string]time.Time
}

func newStubConversationRepo() *stubConversationRepo {
	return &stubConversationRepo{
		convs:   make(map[string]*model.Conversation),
		touched: make(map[string]time.Time),
	}
}

func (s *stubConversationRepo) FindByUuid(uuid string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[uuid]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, errorx.New(errorx.CodeNotFound, "会话不存在")
}

func (s *stubConversationRepo) Create(conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.Uuid] = conv
	return nil
}

func (s *stubConversationRepo) TouchLastMessageAt(uuid string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[uuid] = at
	return nil
}

// stubParticipantRepo 用锁模拟唯一约束：重复插入返回 gorm.ErrDuplicatedKey
type stubParticipantRepo struct {
	mu    sync.Mutex
	rows  map[string][]string // convId -> userIds
	roles map[string]string   // convId|userId -> role
	reads map[string]time.Time
}

func newStubParticipantRepo() *stubParticipantRepo {
	return &stubParticipantRepo{
		rows:  make(map[string][]string),
		roles: make(map[string]string),
		reads: make(map[string]time.Time),
	}
}

func (s *stubParticipantRepo) seed(convId string, userIds ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[convId] = append(s.rows[convId], userIds...)
	for _, uid := range userIds {
		if _, ok := s.roles[convId+"|"+uid]; !ok {
			s.roles[convId+"|"+uid] = "member"
		}
	}
}

func (s *stubParticipantRepo) ListUserIds(conversationId string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rows[conversationId]))
	copy(out, s.rows[conversationId])
	return out, nil
}

func (s *stubParticipantRepo) ListConversationIds(userId string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for convId, userIds := range s.rows {
		for _, uid := range userIds {
			if uid == userId {
				out = append(out, convId)
				break
			}
		}
	}
	return out, nil
}

func (s *stubParticipantRepo) Add(p *model.ConversationParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range s.rows[p.ConversationId] {
		if uid == p.UserId {
			return gorm.ErrDuplicatedKey
		}
	}
	s.rows[p.ConversationId] = append(s.rows[p.ConversationId], p.UserId)
	s.roles[p.ConversationId+"|"+p.UserId] = p.Role
	return nil
}

func (s *stubParticipantRepo) Remove(conversationId, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[conversationId][:0]
	for _, uid := range s.rows[conversationId] {
		if uid != userId {
			kept = append(kept, uid)
		}
	}
	s.rows[conversationId] = kept
	delete(s.roles, conversationId+"|"+userId)
	return nil
}

func (s *stubParticipantRepo) MarkRead(conversationId, userId string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[conversationId+"|"+userId] = at
	return nil
}

func (s *stubParticipantRepo) Role(conversationId, userId string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role, ok := s.roles[conversationId+"|"+userId]; ok {
		return role, nil
	}
	return "", errorx.New(errorx.CodeNotFound, "不是会话成员")
}

func (s *stubParticipantRepo) count(convId, userId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, uid := range s.rows[convId] {
		if uid == userId {
			n++
		}
	}
	return n
}

type stubMessageRepo struct {
	mu   sync.Mutex
	msgs map[int64]*model.Message
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{msgs: make(map[int64]*model.Message)}
}

func (s *stubMessageRepo) Create(message *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	copied := *message
	s.msgs[message.Uuid] = &copied
	return nil
}

func (s *stubMessageRepo) FindByUuid(uuid int64) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.msgs[uuid]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, errorx.New(errorx.CodeNotFound, "消息不存在")
}

func (s *stubMessageRepo) Edit(uuid int64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[uuid]
	if !ok || m.IsDeleted {
		return errorx.New(errorx.CodeNotFound, "消息不存在或已删除")
	}
	m.Content = content
	m.IsEdited = true
	return nil
}

func (s *stubMessageRepo) SoftDelete(uuid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[uuid]
	if !ok {
		return errorx.New(errorx.CodeNotFound, "消息不存在")
	}
	m.IsDeleted = true
	m.Content = ""
	return nil
}

func (s *stubMessageRepo) ListByConversation(conversationId string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.msgs {
		if m.ConversationId == conversationId {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubMessageRepo) countByConversation(conversationId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.ConversationId == conversationId {
			n++
		}
	}
	return n
}

type stubCallRepo struct {
	mu      sync.Mutex
	records []*model.CallRecord
	updates int
}

func newStubCallRepo() *stubCallRepo {
	return &stubCallRepo{}
}

func (s *stubCallRepo) Create(record *model.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records = append(s.records, &copied)
	return nil
}

func (s *stubCallRepo) UpdateLatest(conversationId, callType, status string, endedAt time.Time, duration int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.ConversationId == conversationId && r.CallType == callType {
			r.Status = status
			if !endedAt.IsZero() {
				r.Duration = duration
			}
			return nil
		}
	}
	return nil
}

func (s *stubCallRepo) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *stubCallRepo) latest() *model.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil
	}
	copied := *s.records[len(s.records)-1]
	return &copied
}

type stubPresenceRepo struct {
	mu   sync.Mutex
	rows map[string]model.UserPresence
}

func newStubPresenceRepo() *stubPresenceRepo {
	return &stubPresenceRepo{rows: make(map[string]model.UserPresence)}
}

func (s *stubPresenceRepo) Upsert(userId string, isOnline bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userId] = model.UserPresence{UserId: userId, IsOnline: isOnline, LastSeenAt: lastSeen}
	return nil
}

func (s *stubPresenceRepo) FindByUserIds(userIds []string) ([]model.UserPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.UserPresence
	for _, uid := range userIds {
		if row, ok := s.rows[uid]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubPresenceRepo) get(userId string) (model.UserPresence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userId]
	return row, ok
}

type stubReactionRepo struct {
	mu   sync.Mutex
	rows map[string]bool // messageId|userId|emoji
}

func newStubReactionRepo() *stubReactionRepo {
	return &stubReactionRepo{rows: make(map[string]bool)}
}

func (s *stubReactionRepo) Upsert(r *model.MessageReaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[reactionKey(r.MessageId, r.UserId, r.Emoji)] = true
	return nil
}

func (s *stubReactionRepo) Delete(messageId int64, userId, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, reactionKey(messageId, userId, emoji))
	return nil
}

func reactionKey(messageId int64, userId, emoji string) string {
	return strconv.FormatInt(messageId, 10) + "|" + userId + "|" + emoji
}

// ---- 缓存桩 ----

// stubCache 同步执行任务的缓存桩，同时充当键值缓存和会话消息列表缓存
type stubCache struct {
	mu    sync.Mutex
	kv    map[string]string
	lists map[string][]string
}

func newStubCache() *stubCache {
	return &stubCache{kv: make(map[string]string), lists: make(map[string][]string)}
}

func (s *stubCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *stubCache) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv[key], nil
}

func (s *stubCache) SubmitTask(action func()) { action() }

func (s *stubCache) AppendMessage(_ context.Context, conversationId, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[conversationId] = append(s.lists[conversationId], payload)
	return nil
}

func (s *stubCache) RecentMessages(_ context.Context, conversationId string, limit int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.lists[conversationId]
	if limit > 0 && int64(len(rows)) > limit {
		rows = rows[int64(len(rows))-limit:]
	}
	out := make([]string, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *stubCache) listLen(conversationId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lists[conversationId])
}

// ---- 推送桩 ----

type stubNotifier struct {
	mu    sync.Mutex
	calls []push.Notification
}

func (s *stubNotifier) Notify(_ context.Context, n push.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, n)
}

func (s *stubNotifier) Close() error { return nil }

func (s *stubNotifier) notified(userId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.calls {
		if n.UserId == userId {
			return true
		}
	}
	return false
}

// ---- 测试环境组装 ----

type testEnv struct {
	svc          *ChatService
	users        *stubUserRepo
	convs        *stubConversationRepo
	participants *stubParticipantRepo
	messages     *stubMessageRepo
	calls        *stubCallRepo
	presence     *stubPresenceRepo
	reactions    *stubReactionRepo
	notifier     *stubNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:        newStubUserRepo(),
		convs:        newStubConversationRepo(),
		participants: newStubParticipantRepo(),
		messages:     newStubMessageRepo(),
		calls:        newStubCallRepo(),
		presence:     newStubPresenceRepo(),
		reactions:    newStubReactionRepo(),
		notifier:     &stubNotifier{},
	}
	repos := &dao.Repositories{
		User:         env.users,
		Conversation: env.convs,
		Participant:  env.participants,
		Message:      env.messages,
		Call:         env.calls,
		Presence:     env.presence,
		Reaction:     env.reactions,
	}
	env.svc = NewChatService(repos, env.notifier,
		state.NewMemoryState[presenceEntry](), state.NewMemoryState[time.Time]())
	return env
}

// seedDirect 建一个双人会话，只给 creator 落成员行时传一个 userId
func (env *testEnv) seedDirect(convId string, userIds ...string) {
	env.convs.Create(&model.Conversation{Uuid: convId, Type: model.ConversationDirect})
	env.participants.seed(convId, userIds...)
}

func (env *testEnv) seedGroup(convId, ownerId string, memberIds ...string) {
	env.convs.Create(&model.Conversation{Uuid: convId, Type: model.ConversationGroup})
	env.participants.seed(convId, ownerId)
	env.participants.roles[convId+"|"+ownerId] = "owner"
	env.participants.seed(convId, memberIds...)
}

func (env *testEnv) seedUser(uuid, firstName, lastName string) {
	env.users.Create(&model.UserInfo{Uuid: uuid, FirstName: firstName, LastName: lastName})
}

// newConn 造一条不带真实 websocket 的连接并注册进 Hub
func (env *testEnv) newConn(ctx context.Context, userId string) *UserConn {
	c := &UserConn{
		ConnId:   uuid.NewString(),
		UserId:   userId,
		SendBack: make(chan []byte, 256),
		svc:      env.svc,
	}
	env.svc.Hub().Register(ctx, c)
	return c
}

// drainEvents 取出连接收到的全部事件帧
func drainEvents(t *testing.T, c *UserConn) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case raw := <-c.SendBack:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

// countEvents 按事件名统计
func countEvents(envs []Envelope, event string) int {
	n := 0
	for _, e := range envs {
		if e.Event == event {
			n++
		}
	}
	return n
}
