package chatclient

import "testing"

func pending(id, sender, content, fileUrl string, ts int64) ClientMessage {
	return ClientMessage{
		Id:              PendingIdPrefix + id,
		SenderId:        sender,
		Type:            "text",
		Content:         content,
		FileUrl:         fileUrl,
		CreatedAtUnixMs: ts,
	}
}

func confirmed(id, sender, content, fileUrl string, ts int64) ClientMessage {
	return ClientMessage{
		Id:              id,
		SenderId:        sender,
		Type:            "text",
		Content:         content,
		FileUrl:         fileUrl,
		CreatedAtUnixMs: ts,
	}
}

func TestApplyReplacesPendingByContent(t *testing.T) {
	tl := NewTimeline()
	tl.AddPending(pending("1", "U1", "hi", "", 100))
	tl.Apply(confirmed("M1", "U1", "hi", "", 101))

	msgs := tl.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Id != "M1" || msgs[0].Pending() {
		t.Fatalf("authoritative message should replace the placeholder, got %+v", msgs[0])
	}
}

func TestApplyReplacesPendingByFileUrl(t *testing.T) {
	tl := NewTimeline()
	tl.AddPending(pending("1", "U1", "", "blob:local", 100))
	m := confirmed("M1", "U1", "", "blob:local", 101)
	m.Type = "image"
	tl.Apply(m)

	if tl.Len() != 1 || tl.Messages()[0].Id != "M1" {
		t.Fatalf("media placeholder should be replaced, got %+v", tl.Messages())
	}
}

func TestApplyIsIdempotentUnderDualPathDelivery(t *testing.T) {
	tl := NewTimeline()
	tl.AddPending(pending("1", "U1", "hi", "", 100))

	m := confirmed("M1", "U1", "hi", "", 101)
	// 同一条消息经会话房间和用户房间各到一次
	tl.Apply(m)
	tl.Apply(m)

	if tl.Len() != 1 {
		t.Fatalf("duplicate delivery must collapse to one entry, got %d", tl.Len())
	}
}

func TestApplyByIdUpdatesInPlace(t *testing.T) {
	tl := NewTimeline()
	tl.Apply(confirmed("M1", "U1", "hi", "", 100))

	edited := confirmed("M1", "U1", "hi there", "", 100)
	edited.IsEdited = true
	tl.Apply(edited)

	msgs := tl.Messages()
	if len(msgs) != 1 || !msgs[0].IsEdited || msgs[0].Content != "hi there" {
		t.Fatalf("id match should update in place, got %+v", msgs)
	}
}

func TestApplyKeepsUnrelatedPending(t *testing.T) {
	tl := NewTimeline()
	tl.AddPending(pending("1", "U1", "first", "", 100))
	tl.AddPending(pending("2", "U1", "second", "", 102))
	tl.Apply(confirmed("M1", "U1", "first", "", 101))

	msgs := tl.Messages()
	if len(msgs) != 2 {
		t.Fatalf("unrelated placeholder must survive, got %d", len(msgs))
	}
	if msgs[1].Content != "second" || !msgs[1].Pending() {
		t.Fatalf("expected the second placeholder to remain pending, got %+v", msgs[1])
	}
}

func TestApplySortsByTimestamp(t *testing.T) {
	tl := NewTimeline()
	tl.Apply(confirmed("M2", "U2", "later", "", 200))
	tl.Apply(confirmed("M1", "U1", "earlier", "", 100))

	msgs := tl.Messages()
	if msgs[0].Id != "M1" || msgs[1].Id != "M2" {
		t.Fatalf("timeline must be sorted by timestamp, got %+v", msgs)
	}
}

func TestFailSendRemovesStuckPlaceholder(t *testing.T) {
	tl := NewTimeline()
	tl.AddPending(pending("1", "U1", "doomed", "", 100))
	tl.AddPending(pending("2", "U1", "fine", "", 101))

	tl.FailSend("U1", "doomed", "")

	msgs := tl.Messages()
	if len(msgs) != 1 || msgs[0].Content != "fine" {
		t.Fatalf("failed send must remove only the matching placeholder, got %+v", msgs)
	}
}
