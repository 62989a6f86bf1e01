package session

import (
	"github.com/spigell/skillmatch/internal/profile"
)

// State identifies the conversation step a user is in.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingCourse State = "awaiting_course"
	StateAwaitingPhoto  State = "awaiting_photo"
	StateAwaitingBio    State = "awaiting_bio"
	StateAwaitingTags   State = "awaiting_tags"
	StateBrowsing       State = "browsing"
)

// Phase is the state-specific part of a session. Each state has its own
// concrete type carrying only the fields that state needs.
type Phase interface {
	State() State
}

// Draft accumulates the answers given while creating a profile.
type Draft struct {
	Username string
	Course   string
	PhotoRef string
	Bio      string
	Tags     []string
}

// Idle is the initial phase.
type Idle struct{}

// AwaitingCourse waits for a course button.
type AwaitingCourse struct{}

// AwaitingPhoto waits for a photo or /skip.
type AwaitingPhoto struct {
	Draft Draft
}

// AwaitingBio waits for the free-text bio.
type AwaitingBio struct {
	Draft Draft
}

// Purpose tells which flow a tag selection belongs to.
type Purpose int

const (
	PurposeProfile Purpose = iota
	PurposeFind
)

func (p Purpose) String() string {
	if p == PurposeFind {
		return "find"
	}
	return "profile"
}

// AwaitingTags collects tag toggles either for the profile draft or for a
// search query.
type AwaitingTags struct {
	Purpose  Purpose
	Draft    Draft
	Selected map[string]struct{}
}

// PreviewPending holds a finished draft until it is confirmed or discarded.
// Conversation-wise the user is idle.
type PreviewPending struct {
	Draft Draft
}

// Browsing is an active review of a frozen, ranked result list.
type Browsing struct {
	ID         string
	Results    []profile.Profile
	Cursor     int
	ViewerTags map[string]struct{}
}

func (Idle) State() State           { return StateIdle }
func (AwaitingCourse) State() State { return StateAwaitingCourse }
func (AwaitingPhoto) State() State  { return StateAwaitingPhoto }
func (AwaitingBio) State() State    { return StateAwaitingBio }
func (AwaitingTags) State() State   { return StateAwaitingTags }
func (PreviewPending) State() State { return StateIdle }
func (Browsing) State() State       { return StateBrowsing }

// InRange reports whether idx addresses an element of the result list.
func (b Browsing) InRange(idx int) bool {
	return idx >= 0 && idx < len(b.Results)
}

// Current returns the profile under the cursor.
func (b Browsing) Current() profile.Profile {
	return b.Results[b.Cursor]
}

// Session is the ephemeral conversation state of one user.
type Session struct {
	UserID int64
	Phase  Phase
}

// New returns an idle session.
func New(userID int64) Session {
	return Session{UserID: userID, Phase: Idle{}}
}

// State returns the state of the current phase.
func (s Session) State() State {
	if s.Phase == nil {
		return StateIdle
	}
	return s.Phase.State()
}

// CloneSelected copies a selection so that phases never share a map.
func CloneSelected(selected map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(selected))
	for tag := range selected {
		out[tag] = struct{}{}
	}
	return out
}
