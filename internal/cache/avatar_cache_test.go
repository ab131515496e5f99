package cache

import (
	"testing"
	"time"

	"avatar-hub/internal/models"
)

func TestAvatarCache_Partitions(t *testing.T) {
	c := New(Options{})

	av := models.Avatar{ID: "av1", OwnerID: "u1", DisplayName: "Luna"}
	c.PutAvatar(av)

	got, ok := c.GetAvatar("av1")
	if !ok || got.DisplayName != "Luna" {
		t.Errorf("expected Luna, got (%+v, %v)", got, ok)
	}

	st := models.AvatarStats{AvatarID: "av1", FollowersCount: 10}
	c.PutStats(st)

	gotStats, ok := c.GetStats("av1")
	if !ok || gotStats.FollowersCount != 10 {
		t.Errorf("expected followers 10, got (%+v, %v)", gotStats, ok)
	}

	c.PutOwnerList("u1", []models.Avatar{av})
	list, ok := c.GetOwnerList("u1")
	if !ok || len(list) != 1 || list[0].ID != "av1" {
		t.Errorf("expected owner list with av1, got (%+v, %v)", list, ok)
	}
}

func TestAvatarCache_InvalidateAvatarDropsStats(t *testing.T) {
	c := New(Options{})

	c.PutAvatar(models.Avatar{ID: "av1"})
	c.PutStats(models.AvatarStats{AvatarID: "av1"})

	c.InvalidateAvatar("av1")

	if _, ok := c.GetAvatar("av1"); ok {
		t.Error("expected avatar invalidated")
	}
	if _, ok := c.GetStats("av1"); ok {
		t.Error("expected stats invalidated alongside the avatar")
	}
}

func TestAvatarCache_InvalidateOwner(t *testing.T) {
	c := New(Options{})

	c.PutOwnerList("u1", []models.Avatar{{ID: "av1", OwnerID: "u1"}})
	c.InvalidateOwner("u1")

	if _, ok := c.GetOwnerList("u1"); ok {
		t.Error("expected owner list invalidated")
	}
}

func TestAvatarCache_ClearAll(t *testing.T) {
	c := New(Options{})

	c.PutAvatar(models.Avatar{ID: "av1"})
	c.PutStats(models.AvatarStats{AvatarID: "av1"})
	c.PutOwnerList("u1", nil)

	c.ClearAll()

	st := c.Stats()
	if st.Avatars.Size != 0 || st.Stats.Size != 0 || st.OwnerLists.Size != 0 {
		t.Errorf("expected all partitions empty, got %+v", st)
	}
}

func TestAvatarCache_StatsIntrospection(t *testing.T) {
	c := New(Options{AvatarMax: 7, AvatarTTL: 30 * time.Second})

	c.PutAvatar(models.Avatar{ID: "av1"})

	st := c.Stats()
	if st.Avatars.Size != 1 {
		t.Errorf("expected avatar partition size 1, got %d", st.Avatars.Size)
	}
	if st.Avatars.Max != 7 {
		t.Errorf("expected configured max 7, got %d", st.Avatars.Max)
	}
	if st.Avatars.TTL != 30*time.Second {
		t.Errorf("expected configured TTL 30s, got %s", st.Avatars.TTL)
	}
}
