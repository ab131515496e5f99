package models

import "time"

// Niche classifies what an avatar posts about.
type Niche string

const (
	NicheFashion   Niche = "fashion"
	NicheFitness   Niche = "fitness"
	NicheTravel    Niche = "travel"
	NicheFood      Niche = "food"
	NicheTech      Niche = "tech"
	NicheGaming    Niche = "gaming"
	NicheMusic     Niche = "music"
	NicheArt       Niche = "art"
	NicheLifestyle Niche = "lifestyle"
	NicheEducation Niche = "education"
)

// PersonalityTrait is one element of an avatar's personality set.
type PersonalityTrait string

const (
	TraitFriendly   PersonalityTrait = "friendly"
	TraitSarcastic  PersonalityTrait = "sarcastic"
	TraitInspiring  PersonalityTrait = "inspiring"
	TraitAnalytical PersonalityTrait = "analytical"
	TraitPlayful    PersonalityTrait = "playful"
	TraitMysterious PersonalityTrait = "mysterious"
	TraitBold       PersonalityTrait = "bold"
	TraitWholesome  PersonalityTrait = "wholesome"
)

type Avatar struct {
	ID                string             `json:"id"`
	OwnerID           string             `json:"owner_id"`
	DisplayName       string             `json:"display_name"`
	Bio               string             `json:"bio,omitempty"`
	Niche             Niche              `json:"niche,omitempty"`
	Personality       []PersonalityTrait `json:"personality,omitempty"`
	Backstory         *string            `json:"backstory,omitempty"`
	VoiceStyle        *string            `json:"voice_style,omitempty"`
	ImageURL          *string            `json:"image_url,omitempty"`
	FollowersCount    int64              `json:"followers_count"`
	LikesCount        int64              `json:"likes_count"`
	PostsCount        int64              `json:"posts_count"`
	EngagementRate    float64            `json:"engagement_rate"`
	Active            bool               `json:"active"`
	AutonomousPosting bool               `json:"autonomous_posting"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
}

// Clone returns a deep copy (slices and maps included) so snapshots never
// alias live state.
func (a Avatar) Clone() Avatar {
	cp := a
	if a.Personality != nil {
		cp.Personality = make([]PersonalityTrait, len(a.Personality))
		copy(cp.Personality, a.Personality)
	}
	if a.Metadata != nil {
		cp.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.Backstory = clonePtr(a.Backstory)
	cp.VoiceStyle = clonePtr(a.VoiceStyle)
	cp.ImageURL = clonePtr(a.ImageURL)
	return cp
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// AvatarStats is the cached aggregate view of an avatar's counters. It is
// recomputed from the authoritative Avatar record (or the remote store), never
// edited on its own.
type AvatarStats struct {
	AvatarID       string    `json:"avatar_id"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	PostsCount     int64     `json:"posts_count"`
	TotalLikes     int64     `json:"total_likes"`
	EngagementRate float64   `json:"engagement_rate"`
	LastActiveAt   time.Time `json:"last_active_at"`
}
