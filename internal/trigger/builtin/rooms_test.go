package builtin

import (
	"context"
	"testing"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

func TestAcceptChatInvite(t *testing.T) {
	t.Parallel()

	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{}, TypeAcceptChatInvite, trigger.Options{
		Responses: []string{"Thanks for the invite, {user}"},
		Ignore:    []string{"spammer"},
	})
	ctx := context.Background()

	if !tr.OnChatInvite(ctx, "R", "Room", "u1") {
		t.Fatal("invite not accepted")
	}
	if tr.OnChatInvite(ctx, "R2", "Spam", "spammer") {
		t.Error("invite from ignored inviter accepted")
	}
	equalCalls(t, c.Calls(), []string{"invite R", "say R Thanks for the invite, u1"})
}

func TestAcceptFriendRequest(t *testing.T) {
	t.Parallel()

	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{}, TypeAcceptFriendRequest, trigger.Options{Responses: []string{"hi {user}"}})
	if !tr.OnFriendRequest(context.Background(), "u1") {
		t.Fatal("friend request not accepted")
	}
	equalCalls(t, c.Calls(), []string{"friend u1", "dm u1 hi u1"})
}

func TestAutojoinChat(t *testing.T) {
	t.Parallel()

	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{}, TypeAutojoinChat, trigger.Options{Rooms: []string{"a", "b"}})
	if !tr.OnLoggedOn(context.Background()) {
		t.Fatal("logon not handled")
	}
	equalCalls(t, c.Calls(), []string{"join a", "join b"})

	if _, err := newTrigger(t, c, Deps{}, TypeAutojoinChat, trigger.Options{}); err == nil {
		t.Error("autojoin without rooms loaded")
	}
}

func TestAutojoinChat_RoomsAlsoWhitelist(t *testing.T) {
	t.Parallel()

	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{}, TypeAutojoinChat, trigger.Options{Rooms: []string{"a"}})
	ctx := context.Background()

	if !tr.OnLoggedOn(ctx) {
		t.Fatal("logon not handled")
	}
	// A room outside the list is rejected by the guards before any hook.
	if tr.OnChatMessage(ctx, "elsewhere", "u1", "hi") {
		t.Error("message outside the room list was handled")
	}
	equalCalls(t, c.Calls(), []string{"join a"})
}

func TestLeaveChat(t *testing.T) {
	t.Parallel()

	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{}, TypeLeaveChat, trigger.Options{
		Command: "!leave", Responses: []string{"bye"}, Delay: trigger.Int64(60000),
	})
	if !tr.OnChatMessage(context.Background(), "R", "u1", "!leave") {
		t.Fatal("leave command not handled")
	}
	equalCalls(t, c.Calls(), []string{"say R bye", "leave R"})
}

func TestPlayGame(t *testing.T) {
	t.Parallel()

	c := &fakeClient{}
	tr := mustTrigger(t, c, Deps{}, TypePlayGame, trigger.Options{Responses: []string{"Team Fortress 2"}})
	if !tr.OnLoggedOn(context.Background()) {
		t.Fatal("logon not handled")
	}
	equalCalls(t, c.Calls(), []string{"play Team Fortress 2"})
}

func TestRegister_AllTypes(t *testing.T) {
	t.Parallel()

	reg := trigger.NewRegistry(nil, &fakeClient{})
	t.Cleanup(reg.Scheduler().Close)
	Register(reg, Deps{})

	want := []trigger.Type{
		TypeAcceptChatInvite, TypeAcceptFriendRequest, TypeAIReply, TypeAutojoinChat,
		TypeBan, TypeChatReply, TypeDoormat, TypeIsUp, TypeKick, TypeLeaveChat,
		TypePlayGame, TypeUnban, TypeWeather, TypeBanCheck, TypeLinkName, TypeLockChat,
		TypeUnlockChat, TypeModerateChat, TypeUnmoderateChat,
	}
	got := map[trigger.Type]bool{}
	for _, typ := range reg.Types() {
		got[typ] = true
	}
	for _, typ := range want {
		if !got[typ] {
			t.Errorf("type %q not registered", typ)
		}
	}
}
