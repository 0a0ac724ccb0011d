package bar

import (
	"context"
	"testing"
)

func TestReconcileMergesBothSides(t *testing.T) {
	remote := newFakeRemote()
	remote.records["account-1"] = map[string]string{"rum": "Rum"}
	local := newFakeLocal()
	local.data["device-1"] = []string{"gin", "Lime Juice"}

	c := newTestController(remote, local)
	defer c.Close()

	if err := c.Initialize(context.Background(), authIdentity); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// 聯集：遠端成員保留，本地新增解析後補進遠端
	for _, id := range []string{"rum", "gin", "lime-juice"} {
		if !hasID(c, id) {
			t.Errorf("owned = %v, missing %s", ownedIDs(c), id)
		}
	}
	if !remote.owns("account-1", "gin") || !remote.owns("account-1", "lime-juice") {
		t.Error("local contributions were not pushed to the remote store")
	}

	// 全數寫入成功後裝置快取被清空
	if stored := local.stored("device-1"); len(stored) != 0 {
		t.Errorf("device cache = %v, want empty after full success", stored)
	}

	status := c.SyncStatus()
	if status.Outcome != SyncOutcomeSuccess {
		t.Errorf("outcome = %q, want success", status.Outcome)
	}
	if status.LastReconciledAt.IsZero() {
		t.Error("LastReconciledAt not set after publishing")
	}
}

func TestReconcileNeverRemovesRemoteMembers(t *testing.T) {
	remote := newFakeRemote()
	remote.records["account-1"] = map[string]string{"rum": "Rum", "gin": "Gin"}
	local := newFakeLocal()
	// 裝置快取是空的：對帳後遠端成員仍須全部保留
	c := newTestController(remote, local)
	defer c.Close()

	if err := c.Initialize(context.Background(), authIdentity); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !hasID(c, "rum") || !hasID(c, "gin") {
		t.Errorf("owned = %v, remote members must survive reconciliation", ownedIDs(c))
	}
	if !remote.owns("account-1", "rum") || !remote.owns("account-1", "gin") {
		t.Error("remote store lost members during reconciliation")
	}
}

func TestReconcileRemoteFailureKeepsState(t *testing.T) {
	remote := newFakeRemote()
	remote.failList = true
	local := newFakeLocal()
	local.data["device-1"] = []string{"gin"}

	c := newTestController(remote, local)
	defer c.Close()

	err := c.Initialize(context.Background(), authIdentity)
	if !IsRecoverable(err) {
		t.Fatalf("err = %v, want recoverable error", err)
	}

	// 遠端讀取失敗絕不等於空酒吧：不得發佈、不得動裝置快取
	if len(c.OwnedIngredients()) != 0 {
		t.Errorf("owned = %v, nothing should be published on failure", ownedIDs(c))
	}
	if stored := local.stored("device-1"); len(stored) != 1 || stored[0] != "gin" {
		t.Errorf("device cache = %v, must be untouched on remote failure", stored)
	}
	if got := c.SyncStatus().Outcome; got != SyncOutcomeFailed {
		t.Errorf("outcome = %q, want failed", got)
	}

	// 失敗後可重試：遠端恢復即成功
	remote.failList = false
	if err := c.Initialize(context.Background(), authIdentity); err != nil {
		t.Fatalf("retry Initialize: %v", err)
	}
	if !hasID(c, "gin") {
		t.Errorf("owned = %v, want gin after successful retry", ownedIDs(c))
	}
}

func TestReconcileLocalReadFailurePublishesRemoteOnly(t *testing.T) {
	remote := newFakeRemote()
	remote.records["account-1"] = map[string]string{"rum": "Rum"}
	local := newFakeLocal()
	local.data["device-1"] = []string{"gin"}
	local.failRead = true

	c := newTestController(remote, local)
	defer c.Close()

	if err := c.Initialize(context.Background(), authIdentity); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !hasID(c, "rum") {
		t.Errorf("owned = %v, want remote set", ownedIDs(c))
	}
	if hasID(c, "gin") {
		t.Error("unreadable local contribution must not be guessed into the merge")
	}
	if got := c.SyncStatus().Outcome; got != SyncOutcomePartial {
		t.Errorf("outcome = %q, want partial", got)
	}

	// 快取內容原封不動，等本地恢復後下次對帳再併入
	local.failRead = false
	if stored := local.stored("device-1"); len(stored) != 1 || stored[0] != "gin" {
		t.Errorf("device cache = %v, must be untouched", stored)
	}
}

func TestReconcileFailedUpsertsStayInDeviceCache(t *testing.T) {
	remote := newFakeRemote()
	remote.failUpsert["gin"] = true
	local := newFakeLocal()
	local.data["device-1"] = []string{"gin", "lime-juice"}

	c := newTestController(remote, local)
	defer c.Close()

	if err := c.Initialize(context.Background(), authIdentity); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// 合併視圖包含兩者，使用者看得到自己加過的所有食材
	if !hasID(c, "gin") || !hasID(c, "lime-juice") {
		t.Errorf("owned = %v, merged view must contain both", ownedIDs(c))
	}
	// 寫入成功的從快取移除，失敗的留下待下次對帳
	stored := local.stored("device-1")
	if len(stored) != 1 || stored[0] != "gin" {
		t.Errorf("device cache = %v, want only the failed id retained", stored)
	}
	if !remote.owns("account-1", "lime-juice") {
		t.Error("successful contribution missing from remote store")
	}
	if got := c.SyncStatus().Outcome; got != SyncOutcomePartial {
		t.Errorf("outcome = %q, want partial", got)
	}
}

func TestReconcileResolvesRemoteLegacyIDs(t *testing.T) {
	remote := newFakeRemote()
	// 遠端殘留歷史代碼：對帳時解析為正準識別碼後發佈
	remote.records["account-1"] = map[string]string{"42": ""}
	local := newFakeLocal()

	c := newTestController(remote, local)
	defer c.Close()

	if err := c.Initialize(context.Background(), authIdentity); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !hasID(c, "lime-juice") {
		t.Errorf("owned = %v, want resolved lime-juice", ownedIDs(c))
	}
	ings := c.OwnedIngredients()
	if len(ings) != 1 || ings[0].Name != "Lime Juice" {
		t.Errorf("owned = %+v, want catalog display name", ings)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	remote := newFakeRemote()
	remote.records["account-1"] = map[string]string{"rum": "Rum"}
	local := newFakeLocal()
	local.data["device-1"] = []string{"gin"}

	c := newTestController(remote, local)
	defer c.Close()

	if err := c.Initialize(context.Background(), authIdentity); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	before := ownedIDs(c)

	if err := c.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync: %v", err)
	}
	if err := c.ForceSync(context.Background()); err != nil {
		t.Fatalf("second ForceSync: %v", err)
	}

	after := ownedIDs(c)
	if len(before) != len(after) {
		t.Errorf("owned changed across idempotent reconciles: %v -> %v", before, after)
	}
}
