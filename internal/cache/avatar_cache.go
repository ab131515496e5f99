package cache

import (
	"time"

	"avatar-hub/internal/models"
)

// Partition bounds and TTLs. Lists are fewer and cheaper to refetch, so the
// owner-list partition stays small.
const (
	DefaultAvatarMax = 200
	DefaultStatsMax  = 200
	DefaultListMax   = 50

	DefaultAvatarTTL = 5 * time.Minute
	DefaultStatsTTL  = 2 * time.Minute
	DefaultListTTL   = 5 * time.Minute
)

// Options sizes the three partitions. Zero values fall back to the defaults
// above.
type Options struct {
	AvatarMax int
	StatsMax  int
	ListMax   int
	AvatarTTL time.Duration
	StatsTTL  time.Duration
	ListTTL   time.Duration
}

// AvatarCache bundles the three cache partitions: individual avatar records,
// derived stats, and per-owner avatar lists.
type AvatarCache struct {
	avatars    *Store[models.Avatar]
	stats      *Store[models.AvatarStats]
	ownerLists *Store[[]models.Avatar]

	opts Options
}

func New(opts Options) *AvatarCache {
	if opts.AvatarMax < 1 {
		opts.AvatarMax = DefaultAvatarMax
	}
	if opts.StatsMax < 1 {
		opts.StatsMax = DefaultStatsMax
	}
	if opts.ListMax < 1 {
		opts.ListMax = DefaultListMax
	}
	if opts.AvatarTTL <= 0 {
		opts.AvatarTTL = DefaultAvatarTTL
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = DefaultStatsTTL
	}
	if opts.ListTTL <= 0 {
		opts.ListTTL = DefaultListTTL
	}

	return &AvatarCache{
		avatars:    NewStore[models.Avatar](opts.AvatarMax, opts.AvatarTTL),
		stats:      NewStore[models.AvatarStats](opts.StatsMax, opts.StatsTTL),
		ownerLists: NewStore[[]models.Avatar](opts.ListMax, opts.ListTTL),
		opts:       opts,
	}
}

func (c *AvatarCache) PutAvatar(av models.Avatar) {
	c.avatars.Put(av.ID, av)
}

func (c *AvatarCache) GetAvatar(id string) (models.Avatar, bool) {
	return c.avatars.Get(id)
}

func (c *AvatarCache) InvalidateAvatar(id string) {
	c.avatars.Invalidate(id)
	c.stats.Invalidate(id)
}

func (c *AvatarCache) PutStats(st models.AvatarStats) {
	c.stats.Put(st.AvatarID, st)
}

func (c *AvatarCache) GetStats(avatarID string) (models.AvatarStats, bool) {
	return c.stats.Get(avatarID)
}

func (c *AvatarCache) PutOwnerList(ownerID string, avatars []models.Avatar) {
	c.ownerLists.Put(ownerID, avatars)
}

func (c *AvatarCache) GetOwnerList(ownerID string) ([]models.Avatar, bool) {
	return c.ownerLists.Get(ownerID)
}

// InvalidateOwner drops the owner's cached avatar list so the next read
// refetches it.
func (c *AvatarCache) InvalidateOwner(ownerID string) {
	c.ownerLists.Invalidate(ownerID)
}

// ClearAll empties every partition.
func (c *AvatarCache) ClearAll() {
	c.avatars.Clear()
	c.stats.Clear()
	c.ownerLists.Clear()
}

// PartitionStats is the read-only introspection view of one partition.
type PartitionStats struct {
	Size int           `json:"size"`
	Max  int           `json:"max"`
	TTL  time.Duration `json:"ttl"`
}

type Stats struct {
	Avatars    PartitionStats `json:"avatars"`
	Stats      PartitionStats `json:"stats"`
	OwnerLists PartitionStats `json:"owner_lists"`
}

func (c *AvatarCache) Stats() Stats {
	return Stats{
		Avatars:    PartitionStats{Size: c.avatars.Len(), Max: c.opts.AvatarMax, TTL: c.opts.AvatarTTL},
		Stats:      PartitionStats{Size: c.stats.Len(), Max: c.opts.StatsMax, TTL: c.opts.StatsTTL},
		OwnerLists: PartitionStats{Size: c.ownerLists.Len(), Max: c.opts.ListMax, TTL: c.opts.ListTTL},
	}
}
