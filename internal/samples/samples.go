// Package samples contains the demo bots served by botkit: table
// reservations, hotel check-in, a food menu and an FAQ, routed by intent.
package samples

import (
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/dialog/prompts"
	"github.com/voicetyped/botkit/pkg/recognizer"
)

// Dialog ids.
const (
	ReserveTableID = "reserveTable"
	CheckInID      = "checkIn"
	MenuID         = "menu"
	FAQID          = "faq"
)

// Intents recognized by the sample router.
const (
	IntentReserveTable = "ReserveTable"
	IntentCheckIn      = "CheckIn"
	IntentOrderFood    = "OrderFood"
	IntentFAQ          = "FAQ"
)

// Prompt ids shared by the sample dialogs.
const (
	partySizePrompt = "samples.partySize"
	timePrompt      = "samples.time"
	roomPrompt      = "samples.room"
	confirmPrompt   = "samples.confirm"
	menuPrompt      = "samples.menuItem"
)

// HelpText is sent when no intent is recognized.
const HelpText = "I can reserve a table, check you in, take a food order or answer questions about hours, parking and wifi."

// Register adds every sample dialog and the prompts they use to set.
func Register(set *dialog.DialogSet) *dialog.DialogSet {
	set.Add(prompts.NewNumberPrompt[int](partySizePrompt, validatePartySize))
	set.Add(prompts.NewDateTimePrompt(timePrompt, nil))
	set.Add(prompts.NewNumberPrompt[int](roomPrompt, nil))
	set.Add(prompts.NewConfirmPrompt(confirmPrompt, nil))
	set.Add(prompts.NewChoicePrompt(menuPrompt, nil, dialog.Choices(menuChoices...)...).WithStyle(dialog.ListStyleSuggestedActions))

	set.Add(reserveTableDialog())
	set.Add(checkInDialog())
	set.Add(menuDialog())
	set.Add(faqDialog())
	return set
}

// IntentRecognizer returns the pattern recognizer for the sample intents.
func IntentRecognizer() *recognizer.RegexRecognizer {
	return recognizer.NewRegexRecognizer().
		MustAdd(IntentReserveTable,
			`\btable for (?P<size>\d+)\b`,
			`\b(reserve|reservation|book)\b`).
		MustAdd(IntentCheckIn,
			`\bcheck(ing)?[ -]?in\b.*\broom (?P<room>\d+)\b`,
			`\bcheck(ing)?[ -]?in\b`).
		MustAdd(IntentOrderFood, `\b(order|menu|hungry|food)\b`).
		MustAdd(IntentFAQ, `\b(?P<topic>hours|open|parking|park|wifi|wi-fi|internet)\b`)
}

// Intents describes the sample intents for chat-model recognizers.
func Intents() []recognizer.Intent {
	return []recognizer.Intent{
		{Name: IntentReserveTable, Description: "book a restaurant table; entity size is the party size"},
		{Name: IntentCheckIn, Description: "check in to a hotel room; entity room is the room number"},
		{Name: IntentOrderFood, Description: "order food from the menu"},
		{Name: IntentFAQ, Description: "question about opening hours, parking or wifi; entity topic is one of hours, parking, wifi"},
	}
}

// NewDispatcher routes the sample intents to their dialogs. The pattern
// recognizer always runs; extra recognizers such as a chat model are merged
// with it.
func NewDispatcher(extra ...recognizer.Recognizer) *recognizer.Dispatcher {
	recognizers := append([]recognizer.Recognizer{IntentRecognizer()}, extra...)
	return recognizer.NewDispatcher(recognizers, recognizer.WithFallback(HelpText)).
		Route(IntentReserveTable, ReserveTableID).
		Route(IntentCheckIn, CheckInID).
		Route(IntentOrderFood, MenuID).
		Route(IntentFAQ, FAQID)
}

// WelcomeText greets members joining a conversation.
const WelcomeText = "Welcome! " + HelpText

// NewRunner creates the turn handler for the sample bot: active dialogs are
// continued and new requests are routed by d.
func NewRunner(dialogs func() *dialog.DialogSet, d *recognizer.Dispatcher) *dialog.Runner {
	return &dialog.Runner{Dialogs: dialogs, Start: d.Dispatch, Welcome: WelcomeText}
}
