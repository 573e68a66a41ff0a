package transport

import "context"

// MemberStatus mirrors Telegram's chat member statuses.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Present reports whether the status still counts as being in the chat.
func (s MemberStatus) Present() bool {
	return s != StatusLeft && s != StatusKicked
}

// Elevated reports whether the status carries admin-level visibility.
func (s MemberStatus) Elevated() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// Identity is the single concrete user value used everywhere downstream of
// the adapter, regardless of whether it came from an API response or was
// reconstructed from stored state.
type Identity struct {
	ID        int64
	Username  string // empty when the account has no public username
	FirstName string
}

// Member is an identity plus its membership status in a specific chat.
type Member struct {
	Identity
	Status MemberStatus
	IsBot  bool
}

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// Mention is a single user reference found in a message: either a plain
// "@username" (User nil) or a text mention carrying the full user.
type Mention struct {
	Username string
	User     *Identity
}

type ReplyRef struct {
	MessageID int
	From      Identity
}

type Message struct {
	ID        int
	ChatID    int64
	ChatKind  ChatKind
	ChatTitle string
	From      Identity
	FromBot   bool
	Text      string
	ReplyTo   *ReplyRef
	Mentions  []Mention
}

// InGroup reports whether the message was sent in a group-like chat.
func (m *Message) InGroup() bool {
	return m.ChatKind == ChatGroup || m.ChatKind == ChatSupergroup
}

type Update struct {
	Message *Message
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyTo        *MessageRef
}

// MembershipOutcome classifies the result of a per-user membership probe.
// "Not in this chat" is an expected, high-frequency branch and must not be
// reported as an error.
type MembershipOutcome int

const (
	// MembershipFound: the user resolved in the chat; Status is valid.
	MembershipFound MembershipOutcome = iota
	// MembershipNotApplicable: the user is simply not resolvable in this
	// chat. Expected; callers skip silently.
	MembershipNotApplicable
	// MembershipFailed: the transport call itself failed; Err is set.
	MembershipFailed
)

type Membership struct {
	Outcome MembershipOutcome
	Status  MemberStatus
	Err     error
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)

	// Admins returns the chat's administrator list. Always visible to the
	// bot regardless of its own privilege.
	Admins(ctx context.Context, chatID int64) ([]Member, error)

	// ProbeMember checks a single user's membership in a chat.
	ProbeMember(ctx context.Context, chatID, userID int64) Membership

	MemberCount(ctx context.Context, chatID int64) (int, error)

	// Self returns the bot's own identity.
	Self() Identity
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
