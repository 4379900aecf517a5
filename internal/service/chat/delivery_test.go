package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"moment_social_server/internal/model"
	"moment_social_server/pkg/errorx"
)

func TestSendDeliversToRoomAndUserRooms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1", "U2")
	env.seedUser("U1", "Ann", "Lee")

	a := env.newConn(ctx, "U1")
	b := env.newConn(ctx, "U2")
	drainEvents(t, a)
	drainEvents(t, b)

	payload, err := env.svc.Delivery().Send(ctx, a, &SendMessage{
		ConversationId: "C1",
		Type:           model.MessageText,
		Content:        "hi",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if payload.Sender == nil || payload.Sender.FirstName != "Ann" {
		t.Fatalf("payload should carry sender snapshot, got %+v", payload.Sender)
	}

	bEvents := drainEvents(t, b)
	// 双路径：会话房间一份 + 用户房间一份，去重交给客户端对账
	if n := countEvents(bEvents, EventNewMessage); n != 2 {
		t.Fatalf("receiver should get new_message via both paths, got %d", n)
	}
	if n := countEvents(bEvents, EventConversationUpdated); n != 1 {
		t.Fatalf("receiver should get one conversation_updated, got %d", n)
	}

	aEvents := drainEvents(t, a)
	if n := countEvents(aEvents, EventMessageSent); n != 1 {
		t.Fatalf("sender should get exactly one ack, got %d", n)
	}
	if n := countEvents(aEvents, EventConversationUpdated); n != 0 {
		t.Fatalf("sender should not get conversation_updated, got %d", n)
	}

	if _, ok := env.convs.touched["C1"]; !ok {
		t.Fatal("send must refresh conversation last_message_at")
	}
	if _, ok := env.participants.reads["C1|U1"]; !ok {
		t.Fatal("send must mark the conversation read for the sender")
	}
}

func TestSendRepairsPartiallyProvisionedDirectConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// 懒创建场景：只有发起方 U1 的成员行落了库
	env.seedDirect("C1", "U1")

	b := env.newConn(ctx, "U2")
	if _, err := env.svc.Delivery().Send(ctx, b, &SendMessage{
		ConversationId: "C1",
		Type:           model.MessageText,
		Content:        "hello",
	}); err != nil {
		t.Fatalf("send should self-heal the missing participant row: %v", err)
	}

	if n := env.participants.count("C1", "U2"); n != 1 {
		t.Fatalf("expected exactly one participant row for U2, got %d", n)
	}
	if env.messages.countByConversation("C1") != 1 {
		t.Fatal("message should be persisted after repair")
	}
}

func TestConcurrentRepairConvergesToSingleRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1")

	b := env.newConn(ctx, "U2")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Delivery().Send(ctx, b, &SendMessage{
				ConversationId: "C1",
				Type:           model.MessageText,
				Content:        "race",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent send %d failed: %v", i, err)
		}
	}
	if n := env.participants.count("C1", "U2"); n != 1 {
		t.Fatalf("duplicate-key collision must converge to one row, got %d", n)
	}
	if env.messages.countByConversation("C1") != 2 {
		t.Fatal("both concurrent sends should persist their messages")
	}
}

func TestSendRejectsNonParticipantWhenConversationFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1", "U2")

	outsider := env.newConn(ctx, "U9")
	_, err := env.svc.Delivery().Send(ctx, outsider, &SendMessage{
		ConversationId: "C1",
		Type:           model.MessageText,
		Content:        "sneak",
	})
	if !errors.Is(err, errorx.ErrNotParticipant) {
		t.Fatalf("expected NotParticipant, got %v", err)
	}
	if env.messages.countByConversation("C1") != 0 {
		t.Fatal("rejected send must not persist a message")
	}
}

func TestSendConversationNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.newConn(ctx, "U1")
	_, err := env.svc.Delivery().Send(ctx, c, &SendMessage{
		ConversationId: "missing",
		Type:           model.MessageText,
		Content:        "hi",
	})
	if !errors.Is(err, errorx.ErrConversationNotFound) {
		t.Fatalf("expected ConversationNotFound, got %v", err)
	}
}

func TestOfflineParticipantGetsPushNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1", "U2")
	env.seedUser("U1", "Ann", "Lee")

	a := env.newConn(ctx, "U1")
	// U2 完全离线，没有任何连接

	if _, err := env.svc.Delivery().Send(ctx, a, &SendMessage{
		ConversationId: "C1",
		Type:           model.MessageImage,
		FileUrl:        "https://cdn.example.com/p.jpg",
	}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if !env.notifier.notified("U2") {
		t.Fatal("offline participant should receive a push notification")
	}
	if env.notifier.notified("U1") {
		t.Fatal("sender must never be pushed")
	}
	if env.notifier.calls[0].Body != "📷 Photo" {
		t.Fatalf("image preview mismatch: %q", env.notifier.calls[0].Body)
	}
}

func TestSendAppendsRecentMessageCacheAndCachesProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1", "U2")
	env.seedUser("U1", "Ann", "Lee")

	cache := newStubCache()
	env.svc.Delivery().SetCache(cache, cache)

	a := env.newConn(ctx, "U1")
	if _, err := env.svc.Delivery().Send(ctx, a, &SendMessage{
		ConversationId: "C1",
		Type:           model.MessageText,
		Content:        "hi",
	}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if n := cache.listLen("C1"); n != 1 {
		t.Fatalf("send should append one entry to the recent-message cache, got %d", n)
	}
	if raw, _ := cache.Get(ctx, "user:profile:U1"); raw == "" {
		t.Fatal("send should cache the sender profile snapshot")
	}

	// 快照已进缓存，删掉数据库里的用户也能取到
	delete(env.users.users, "U1")
	payload, err := env.svc.Delivery().Send(ctx, a, &SendMessage{
		ConversationId: "C1",
		Type:           model.MessageText,
		Content:        "again",
	})
	if err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	if payload.Sender == nil || payload.Sender.FirstName != "Ann" {
		t.Fatalf("sender snapshot should be served from cache, got %+v", payload.Sender)
	}
}

func TestHistoryServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1", "U2")
	env.seedUser("U1", "Ann", "Lee")

	cache := newStubCache()
	env.svc.Delivery().SetCache(cache, cache)

	a := env.newConn(ctx, "U1")
	for _, text := range []string{"first", "second"} {
		if _, err := env.svc.Delivery().Send(ctx, a, &SendMessage{
			ConversationId: "C1",
			Type:           model.MessageText,
			Content:        text,
		}); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	msgs, err := env.svc.Delivery().History(ctx, "U2", "C1", 50)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 cached messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Fatalf("cached history out of order: %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestHistoryFallsBackToStoreAndBackfills(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1", "U2")

	cache := newStubCache()
	env.svc.Delivery().SetCache(cache, cache)

	// 消息只在数据库里，缓存是空的（例如 TTL 过期后）
	env.messages.Create(&model.Message{Uuid: 1, ConversationId: "C1", SenderId: "U1", Type: model.MessageText, Content: "old"})

	msgs, err := env.svc.Delivery().History(ctx, "U1", "C1", 50)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "old" {
		t.Fatalf("history should fall back to the store, got %+v", msgs)
	}
	if n := cache.listLen("C1"); n != 1 {
		t.Fatalf("cache miss should backfill the recent-message list, got %d entries", n)
	}
}

func TestHistoryRejectsNonParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDirect("C1", "U1", "U2")

	_, err := env.svc.Delivery().History(ctx, "U9", "C1", 50)
	if !errors.Is(err, errorx.ErrNotParticipant) {
		t.Fatalf("expected NotParticipant, got %v", err)
	}
}

func TestNotificationPreviewTruncatesLongText(t *testing.T) {
	long := ""
	for i := 0; i < 80; i++ {
		long += "字"
	}
	preview := notificationPreview(&MessagePayload{Type: model.MessageText, Content: long})
	if got := len([]rune(preview)); got != 51 { // 50 字 + 省略号
		t.Fatalf("preview should truncate to 50 runes plus ellipsis, got %d", got)
	}
}
