package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/catalog"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/profile"
	"github.com/spigell/skillmatch/internal/session"
	"github.com/spigell/skillmatch/internal/utils"
)

const (
	defaultSuggestTimeout = 5 * time.Second
	maxSuggestedTags      = 5
	bioLogLimit           = 80
)

// Repository stores profiles.
type Repository interface {
	// Get returns profile.ErrNotFound when the user has no profile.
	Get(ctx context.Context, userID int64) (*profile.Profile, error)
	Upsert(ctx context.Context, p profile.Profile) error
	// Delete succeeds when there is nothing to delete.
	Delete(ctx context.Context, userID int64) error
	ListExcept(ctx context.Context, userID int64) ([]profile.Profile, error)
}

type Config struct {
	// SuggestTimeout bounds a single tag suggestion request.
	SuggestTimeout time.Duration
}

type Deps struct {
	Logger     *zap.Logger
	Catalog    *catalog.Catalog
	Repository Repository
	Sessions   *session.Store
	Transport  Transport
	// Suggester is optional.
	Suggester ai.TagSuggester
	// NewID generates browse session ids. Defaults to random UUIDs.
	NewID func() string
}

// Bot turns inbound updates into session transitions and chat replies.
// Handle must not be called concurrently for the same user.
type Bot struct {
	config    *Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	repo      Repository
	sessions  *session.Store
	presenter *Presenter
	suggester ai.TagSuggester
	newID     func() string
}

func New(cfg *Config, deps *Deps) (*Bot, error) {
	if deps == nil {
		return nil, errors.New("bot dependencies are required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("tag catalog is required")
	}
	if deps.Repository == nil {
		return nil, errors.New("profile repository is required")
	}
	if deps.Transport == nil {
		return nil, errors.New("transport is required")
	}

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.SuggestTimeout <= 0 {
		cfg.SuggestTimeout = defaultSuggestTimeout
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewStore(0)
	}

	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Bot{
		config:    cfg,
		logger:    log,
		catalog:   deps.Catalog,
		repo:      deps.Repository,
		sessions:  sessions,
		presenter: NewPresenter(deps.Transport, log),
		suggester: deps.Suggester,
		newID:     newID,
	}, nil
}

// Handle processes a single update. Failures are reported to the user and
// logged; the session changes only when the reply was delivered.
func (b *Bot) Handle(ctx context.Context, u Update) {
	if u.Event == nil {
		return
	}

	sess := b.sessions.Get(u.UserID)
	log := logger.WithEventFields(b.logger, u.UserID, u.Username, u.Event.Name()).
		With(sessionFields(u, sess)...)

	out := b.transition(ctx, log, sess, u)

	if err := b.presenter.Present(ctx, u.Trigger, out); err != nil {
		log.Error("failed to deliver reply; session left unchanged", zap.Error(err))
		if u.Trigger.Kind != TriggerCallback {
			b.notifyFailure(ctx, log, u.Trigger.ChatID)
		}
		return
	}

	next := out.next
	if next == nil {
		next = sess.Phase
	}

	switch next.(type) {
	case nil, session.Idle:
		b.sessions.Reset(u.UserID)
	default:
		b.sessions.Put(session.Session{UserID: u.UserID, Phase: next})
	}

	if next != nil && next.State() != sess.State() {
		log.Debug("state changed", zap.String("next", string(next.State())))
	}
}

// sessionFields describes the phase an update lands in.
func sessionFields(u Update, sess session.Session) []zap.Field {
	fields := []zap.Field{
		zap.String(logger.FieldState, string(sess.State())),
		zap.String(logger.FieldTrigger, u.Trigger.Kind.String()),
	}
	if ph, ok := sess.Phase.(session.AwaitingTags); ok {
		fields = append(fields, zap.String(logger.FieldPurpose, ph.Purpose.String()))
	}
	return fields
}

func (b *Bot) notifyFailure(ctx context.Context, log *zap.Logger, chatID int64) {
	if err := b.presenter.send(ctx, chatID, reply{Text: textFailure}); err != nil {
		log.Warn("failed to send failure notice", zap.Error(err))
	}
}

func (b *Bot) transition(ctx context.Context, log *zap.Logger, sess session.Session, u Update) outcome {
	switch ev := u.Event.(type) {
	case Command:
		return b.onCommand(ctx, log, sess, u, ev)
	case Text:
		return b.onText(ctx, log, sess, ev)
	case Photo:
		return onPhoto(sess, ev)
	case CourseChosen:
		return onCourseChosen(sess, u, ev)
	case TagToggled:
		return b.onTagToggled(log, sess, ev)
	case TagsConfirmed:
		return onTagsConfirmed(sess)
	case FindConfirmed:
		return b.onFindConfirmed(ctx, log, sess, u)
	case ProfileConfirmed:
		return b.onProfileConfirmed(ctx, log, sess, u)
	case ProfileEditRequested:
		return outcome{reply: textReply(textEditAgain, courseKeyboard()), next: session.AwaitingCourse{}}
	case NavRequested:
		return onNav(log, sess, ev)
	case UnknownCallback:
		log.Warn("unknown callback payload", zap.String("data", ev.Data))
		return outcome{alert: alertUnsupported}
	}

	log.Warn("unhandled event", zap.String("type", fmt.Sprintf("%T", u.Event)))
	return guidance()
}

func (b *Bot) onCommand(ctx context.Context, log *zap.Logger, sess session.Session, u Update, cmd Command) outcome {
	switch cmd.Command {
	case CommandStart:
		return outcome{reply: textReply(textWelcome, courseKeyboard()), next: session.AwaitingCourse{}}
	case CommandHelp:
		return outcome{reply: textReply(textHelp, nil)}
	case CommandMenu:
		return outcome{reply: textReply(textMenu, menuKeyboard())}
	case CommandProfile:
		return b.showProfile(ctx, log, u)
	case CommandDeleteProfile:
		return b.deleteProfile(ctx, log, u)
	case CommandSearch:
		return b.search(ctx, log, u)
	case CommandFind:
		return outcome{
			reply: textReply(textFindPrompt, tagKeyboard(b.catalog, nil, session.PurposeFind)),
			next:  session.AwaitingTags{Purpose: session.PurposeFind, Selected: map[string]struct{}{}},
		}
	case CommandSkip:
		if ph, ok := sess.Phase.(session.AwaitingPhoto); ok {
			draft := ph.Draft
			draft.PhotoRef = ""
			return outcome{reply: textReply(textBioPrompt, nil), next: session.AwaitingBio{Draft: draft}}
		}
	}

	return guidance()
}

func (b *Bot) onText(ctx context.Context, log *zap.Logger, sess session.Session, ev Text) outcome {
	ph, ok := sess.Phase.(session.AwaitingBio)
	if !ok {
		return guidance()
	}

	draft := ph.Draft
	draft.Bio = profile.TruncateBio(strings.TrimSpace(ev.Content))
	log.Debug("bio received", zap.String("bio", utils.TruncateForLog(draft.Bio, bioLogLimit)))

	prompt := textTagsPrompt
	if hint := b.suggest(ctx, log, draft.Bio); len(hint) > 0 {
		prompt += "\n\n" + textSuggested + strings.Join(hint, ", ")
	}

	return outcome{
		reply: textReply(prompt, tagKeyboard(b.catalog, nil, session.PurposeProfile)),
		next: session.AwaitingTags{
			Purpose:  session.PurposeProfile,
			Draft:    draft,
			Selected: map[string]struct{}{},
		},
	}
}

// suggest asks the optional suggester for catalog tags matching bio. Only
// catalog tags are kept; errors are logged and yield no hint.
func (b *Bot) suggest(ctx context.Context, log *zap.Logger, bio string) []string {
	if b.suggester == nil || bio == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.SuggestTimeout)
	defer cancel()

	suggestion, err := b.suggester.SuggestTags(ctx, bio, b.catalog.Tags())
	if err != nil {
		log.Warn("tag suggestion failed", zap.Error(err))
		return nil
	}
	if suggestion == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(suggestion.Tags))
	tags := make([]string, 0, len(suggestion.Tags))
	for _, tag := range suggestion.Tags {
		if !b.catalog.IsValid(tag) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxSuggestedTags {
			break
		}
	}

	log.Debug("tags suggested", zap.Strings("tags", tags))
	return tags
}

func onPhoto(sess session.Session, ev Photo) outcome {
	ph, ok := sess.Phase.(session.AwaitingPhoto)
	if !ok {
		return guidance()
	}

	draft := ph.Draft
	draft.PhotoRef = ev.Ref
	return outcome{reply: textReply(textBioPrompt, nil), next: session.AwaitingBio{Draft: draft}}
}

// onCourseChosen overwrites the course of the draft. Picking again while
// waiting for the photo keeps the rest of the draft.
func onCourseChosen(sess session.Session, u Update, ev CourseChosen) outcome {
	var draft session.Draft
	switch ph := sess.Phase.(type) {
	case session.AwaitingCourse:
	case session.AwaitingPhoto:
		draft = ph.Draft
	default:
		return mismatch(sess)
	}

	draft.Username = u.Username
	draft.Course = ev.Course.Label
	return outcome{reply: textReply(textPhotoPrompt, nil), next: session.AwaitingPhoto{Draft: draft}}
}

func (b *Bot) onTagToggled(log *zap.Logger, sess session.Session, ev TagToggled) outcome {
	ph, ok := sess.Phase.(session.AwaitingTags)
	if !ok {
		return mismatch(sess)
	}

	selected := session.CloneSelected(ph.Selected)
	switch {
	case !b.catalog.IsValid(ev.Tag):
		log.Warn("ignoring tag outside the catalog", zap.String("tag", ev.Tag))
	default:
		if _, on := selected[ev.Tag]; on {
			delete(selected, ev.Tag)
		} else {
			selected[ev.Tag] = struct{}{}
		}
	}

	ph.Selected = selected
	return outcome{
		reply:        &reply{Keyboard: tagKeyboard(b.catalog, selected, ph.Purpose)},
		keyboardOnly: true,
		next:         ph,
	}
}

func onTagsConfirmed(sess session.Session) outcome {
	ph, ok := sess.Phase.(session.AwaitingTags)
	if !ok {
		return mismatch(sess)
	}
	if ph.Purpose != session.PurposeProfile {
		return outcome{alert: alertUnsupported}
	}

	draft := ph.Draft
	draft.Tags = profile.SortedTags(ph.Selected)
	return outcome{reply: previewReply(draft), next: session.PreviewPending{Draft: draft}}
}

func (b *Bot) onFindConfirmed(ctx context.Context, log *zap.Logger, sess session.Session, u Update) outcome {
	ph, ok := sess.Phase.(session.AwaitingTags)
	if !ok {
		return mismatch(sess)
	}
	if ph.Purpose != session.PurposeFind {
		return outcome{alert: alertUnsupported}
	}
	if len(ph.Selected) == 0 {
		return outcome{alert: alertSelectSkill}
	}

	return b.browse(ctx, log, u, session.CloneSelected(ph.Selected), textNobodyFound, matching.FilterAndRank)
}

func (b *Bot) onProfileConfirmed(ctx context.Context, log *zap.Logger, sess session.Session, u Update) outcome {
	ph, ok := sess.Phase.(session.PreviewPending)
	if !ok {
		return mismatch(sess)
	}

	p := draftProfile(u.UserID, ph.Draft)
	if err := b.repo.Upsert(ctx, p); err != nil {
		log.Error("failed to save profile", zap.Error(err))
		return failure(u)
	}

	log.Info("profile saved", zap.String("course", p.Course), zap.Strings("tags", p.Tags), zap.Bool("photo", p.HasPhoto()))
	return outcome{reply: textReply(textSaved, nil), next: session.Idle{}}
}

func (b *Bot) showProfile(ctx context.Context, log *zap.Logger, u Update) outcome {
	p, err := b.repo.Get(ctx, u.UserID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return outcome{reply: textReply(textNoProfile, nil)}
	case err != nil:
		log.Error("failed to load profile", zap.Error(err))
		return failure(u)
	}

	return outcome{reply: ownProfileReply(*p)}
}

func (b *Bot) deleteProfile(ctx context.Context, log *zap.Logger, u Update) outcome {
	if err := b.repo.Delete(ctx, u.UserID); err != nil {
		log.Error("failed to delete profile", zap.Error(err))
		return failure(u)
	}

	log.Info("profile deleted")
	return outcome{reply: textReply(textDeleted, nil)}
}

// search browses everyone else ranked by overlap with the viewer's own tags.
// Users without a profile browse with no tags.
func (b *Bot) search(ctx context.Context, log *zap.Logger, u Update) outcome {
	viewer := map[string]struct{}{}

	me, err := b.repo.Get(ctx, u.UserID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
	case err != nil:
		log.Error("failed to load viewer profile", zap.Error(err))
		return failure(u)
	default:
		viewer = me.TagSet()
	}

	return b.browse(ctx, log, u, viewer, textNoProfiles, matching.Rank)
}

// browse ranks the other profiles against viewer with rank and opens a
// browse session on the first result.
func (b *Bot) browse(ctx context.Context, log *zap.Logger, u Update, viewer map[string]struct{}, emptyText string, rank func([]profile.Profile, map[string]struct{}) matching.Result) outcome {
	candidates, err := b.repo.ListExcept(ctx, u.UserID)
	if err != nil {
		log.Error("failed to list profiles", zap.Error(err))
		return failure(u)
	}

	result := rank(candidates, viewer)
	for _, step := range result.Steps {
		log.Debug("matching step finished",
			zap.String("step", step.Name),
			zap.Int("initial", step.Initial),
			zap.Int("dropped", step.Dropped),
			zap.Int("left", step.Left),
		)
	}

	if len(result.Candidates) == 0 {
		return outcome{reply: textReply(emptyText, nil), next: session.Idle{}}
	}

	browsing := session.Browsing{
		ID:         b.newID(),
		Results:    result.Profiles(),
		ViewerTags: viewer,
	}
	log.Info("browse session started", zap.String("browse_id", browsing.ID), zap.Int("results", len(browsing.Results)))

	return outcome{reply: candidateReply(browsing), next: browsing}
}

// onNav moves one step from the index the button was rendered at, so
// repeated taps on the same button land on the same profile.
func onNav(log *zap.Logger, sess session.Session, ev NavRequested) outcome {
	ph, ok := sess.Phase.(session.Browsing)
	if !ok {
		return mismatch(sess)
	}

	target := ev.From + ev.Step
	if !ph.InRange(target) {
		return outcome{alert: alertNoMore}
	}

	ph.Cursor = target
	log.Debug("browse cursor moved", zap.String("browse_id", ph.ID), zap.Int("cursor", target))
	return outcome{reply: candidateReply(ph), next: ph}
}

func guidance() outcome {
	return outcome{reply: textReply(textGuidance, nil)}
}

// mismatch answers a step button that does not belong to the current phase.
// Only a lost session is reset; a live one is kept and the tap is refused.
func mismatch(sess session.Session) outcome {
	switch sess.Phase.(type) {
	case nil, session.Idle:
		return expired()
	}
	return outcome{alert: alertUnsupported}
}

// expired replaces a keyboard whose session is gone and returns to idle.
func expired() outcome {
	return outcome{reply: textReply(textExpired, nil), alert: alertSessionEnded, next: session.Idle{}}
}

// failure keeps the phase. Callbacks get an alert so the keyboard stays
// usable for a retry.
func failure(u Update) outcome {
	if u.Trigger.Kind == TriggerCallback {
		return outcome{alert: textFailure}
	}
	return outcome{reply: textReply(textFailure, nil)}
}
