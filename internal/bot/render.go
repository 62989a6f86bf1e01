package bot

import (
	"strings"

	"github.com/spigell/skillmatch/internal/catalog"
	"github.com/spigell/skillmatch/internal/profile"
	"github.com/spigell/skillmatch/internal/session"
)

const tagsPerRow = 3

const (
	textWelcome       = "👋 Welcome! Let's build your profile so teammates can find you.\n\nChoose your course:"
	textEditAgain     = "✏ Let's update your profile. Choose your course again:"
	textPhotoPrompt   = "📷 Send a photo for your profile, or /skip to continue without one."
	textBioPrompt     = "📝 Tell others about yourself and who you are looking for (up to 500 characters):"
	textTagsPrompt    = "🛠 Choose your skills, then press Confirm:"
	textFindPrompt    = "🔎 Choose the skills you are looking for, then press Search:"
	textSuggested     = "💡 Suggested: "
	textSaved         = "✅ Profile saved! Use /search to browse other profiles or /find to search by skills."
	textNoProfile     = "You don't have a profile yet. Create one with /start."
	textDeleted       = "🗑 Your profile has been deleted."
	textNoProfiles    = "No other profiles yet. Come back later!"
	textNobodyFound   = "😔 Nobody has the selected skills yet. Try /find with a different set."
	textGuidance      = "🤔 I didn't get that. Use /menu to see what I can do."
	textFailure       = "⚠ Something went wrong. Please try again."
	textExpired       = "⌛ This session has expired. Use /start or /menu to begin again."
	textMenu          = "📋 Choose a command:"
	textPreviewHeader = "👀 Your profile preview:"
	textOwnHeader     = "📌 Your profile:"

	alertSelectSkill  = "Select at least one skill"
	alertNoMore       = "No more profiles in this direction"
	alertUnsupported  = "This button is no longer active"
	alertSessionEnded = "Session expired"

	textHelp = "ℹ What I can do:\n\n" +
		"/start - create or recreate your profile\n" +
		"/profile - show your profile\n" +
		"/search - browse profiles ranked by shared skills\n" +
		"/find - find people with specific skills\n" +
		"/delete_profile - delete your profile\n" +
		"/menu - show the command buttons\n" +
		"/help - show this message"
)

// reply is what a transition wants to show.
type reply struct {
	Text     string
	PhotoRef string
	Keyboard Keyboard
}

func textReply(text string, kb Keyboard) *reply {
	return &reply{Text: text, Keyboard: kb}
}

// renderProfile formats a profile card. matched is shown only when non-empty.
func renderProfile(p profile.Profile, matched []string) string {
	var b strings.Builder

	b.WriteString("👤 ")
	if p.Username != "" {
		b.WriteString("@" + p.Username)
	} else {
		b.WriteString("no username")
	}

	b.WriteString("\n📚 Course: ")
	b.WriteString(orNotSpecified(p.Course))

	b.WriteString("\n🛠 Skills: ")
	b.WriteString(orNotSpecified(strings.Join(profile.SortedTags(p.TagSet()), ", ")))

	if len(matched) > 0 {
		b.WriteString("\n✨ Matched skills: ")
		b.WriteString(strings.Join(matched, ", "))
	}

	b.WriteString("\n📝 About: ")
	b.WriteString(orNotSpecified(p.Bio))

	return b.String()
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not specified"
	}
	return s
}

func ownProfileReply(p profile.Profile) *reply {
	return &reply{
		Text:     textOwnHeader + "\n\n" + renderProfile(p, nil),
		PhotoRef: p.PhotoRef,
		Keyboard: editKeyboard(),
	}
}

func previewReply(d session.Draft) *reply {
	p := draftProfile(0, d)
	return &reply{
		Text:     textPreviewHeader + "\n\n" + renderProfile(p, nil),
		PhotoRef: d.PhotoRef,
		Keyboard: confirmKeyboard(),
	}
}

func candidateReply(b session.Browsing) *reply {
	p := b.Current()
	return &reply{
		Text:     renderProfile(p, profile.Intersect(b.ViewerTags, p.TagSet())),
		PhotoRef: p.PhotoRef,
		Keyboard: navKeyboard(b.Cursor, len(b.Results)),
	}
}

func draftProfile(userID int64, d session.Draft) profile.Profile {
	return profile.Profile{
		UserID:   userID,
		Username: d.Username,
		Course:   d.Course,
		PhotoRef: d.PhotoRef,
		Bio:      d.Bio,
		Tags:     profile.SortedTags(profile.NewTagSet(d.Tags...)),
	}
}

func courseKeyboard() Keyboard {
	kb := make(Keyboard, 0, (len(profile.Courses)+1)/2)
	for i := 0; i < len(profile.Courses); i += 2 {
		row := make([]Button, 0, 2)
		for _, c := range profile.Courses[i:min(i+2, len(profile.Courses))] {
			row = append(row, Button{Text: c.Label, Data: coursePayload(c.Code)})
		}
		kb = append(kb, row)
	}
	return kb
}

// tagKeyboard renders the catalog with selected tags marked and a confirm
// row that depends on the flow the selection belongs to.
func tagKeyboard(cat *catalog.Catalog, selected map[string]struct{}, purpose session.Purpose) Keyboard {
	tags := cat.Tags()
	kb := make(Keyboard, 0, len(tags)/tagsPerRow+2)

	var row []Button
	for _, tag := range tags {
		label := tag
		if _, ok := selected[tag]; ok {
			label = "✅ " + tag
		}
		row = append(row, Button{Text: label, Data: tagPayload(tag)})
		if len(row) == tagsPerRow {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}

	confirm := Button{Text: "✅ Confirm", Data: payloadTagsConfirm}
	if purpose == session.PurposeFind {
		confirm = Button{Text: "🔎 Search", Data: payloadFindConfirm}
	}
	return append(kb, []Button{confirm})
}

func confirmKeyboard() Keyboard {
	return Keyboard{{
		{Text: "✅ Confirm", Data: payloadConfirmProfile},
		{Text: "✏ Edit", Data: payloadEditProfile},
	}}
}

func editKeyboard() Keyboard {
	return Keyboard{{{Text: "✏ Edit profile", Data: payloadEditProfile}}}
}

// navKeyboard has a back button unless idx is first and a next button unless
// idx is last. It is nil for a single result.
func navKeyboard(idx, total int) Keyboard {
	var row []Button
	if idx > 0 {
		row = append(row, Button{Text: "⬅ Back", Data: navPayload(-1, idx)})
	}
	if idx < total-1 {
		row = append(row, Button{Text: "Next ➡", Data: navPayload(1, idx)})
	}
	if len(row) == 0 {
		return nil
	}
	return Keyboard{row}
}

func menuKeyboard() Keyboard {
	return Keyboard{
		{
			{Text: "🚀 Create profile", Data: commandPayload(CommandStart)},
			{Text: "📌 My profile", Data: commandPayload(CommandProfile)},
		},
		{
			{Text: "👀 Browse", Data: commandPayload(CommandSearch)},
			{Text: "🔎 Find by skills", Data: commandPayload(CommandFind)},
		},
		{
			{Text: "🗑 Delete profile", Data: commandPayload(CommandDeleteProfile)},
			{Text: "ℹ Help", Data: commandPayload(CommandHelp)},
		},
	}
}
